package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"time"

	"echostudio/internal/assetid"
	"echostudio/internal/domain"
	"echostudio/internal/provider"
	"echostudio/internal/thumbnail"
)

// EditService реализует операции версионирования: правка ассета через
// внешний сервис (новая версия в той же цепочке) и save-as-new
// (ответвление в независимый корень)
type EditService struct {
	assets *AssetService
	editor provider.ImageEditor
	thumbs thumbnail.Generator
}

func NewEditService(assets *AssetService, editor provider.ImageEditor, thumbs thumbnail.Generator) *EditService {
	return &EditService{
		assets: assets,
		editor: editor,
		thumbs: thumbs,
	}
}

// EditAsset выполняет правку существующего ассета. Результат — новая
// запись со свежим идентификатором, version+1 и ссылкой на источник;
// сама исходная запись не меняется.
func (s *EditService) EditAsset(ctx context.Context, id, editPrompt, model string) (*domain.Asset, error) {
	if editPrompt == "" {
		return nil, fmt.Errorf("%w: editPrompt is required", ErrValidation)
	}

	source, err := s.assets.GetAsset(ctx, id)
	if err != nil {
		return nil, err
	}

	// Вызов внешнего провайдера: ошибка или таймаут фатальны для операции,
	// автоматических повторов на этом уровне нет
	edited, err := s.editor.Edit(ctx, provider.EditRequest{
		BaseImageURL: s.assets.imageURL(source.ID, source.Format),
		Description:  source.Description,
		EditPrompt:   editPrompt,
		AspectRatio:  source.AspectRatio,
		Model:        model,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}

	width, height, err := s.thumbs.Dimensions(edited)
	if err != nil {
		return nil, fmt.Errorf("%w: provider returned unusable image: %v", ErrProvider, err)
	}

	now := time.Now().UTC()
	parentID := source.ID
	next := source.Clone()
	next.ID = assetid.Generate(source.Name)
	next.Version = source.Version + 1
	next.ParentAssetID = &parentID
	next.EditHistory = append(next.EditHistory, domain.EditHistoryEntry{
		Timestamp:       now,
		EditPrompt:      editPrompt,
		PreviousAssetID: source.ID,
	})
	next.Width = width
	next.Height = height
	next.FileSize = int64(len(edited))
	next.URL = s.assets.imageURL(next.ID, next.Format)
	next.ThumbnailURL = s.assets.thumbURL(next.ID, next.Format)
	next.CreatedAt = now
	next.UpdatedAt = now

	if err := s.assets.SaveAsset(ctx, next, edited); err != nil {
		return nil, err
	}

	s.persistThumbnail(ctx, next, edited)

	return next, nil
}

// SaveAsNew сохраняет ассет как независимый корень: parentAssetId
// сбрасывается, версия снова 1, история правок пуста. Родословная
// намеренно теряется, от визуального источника остаётся только текст
// generationPrompt.
func (s *EditService) SaveAsNew(ctx context.Context, id string, req domain.SaveAsNewRequest) (*domain.Asset, error) {
	source, err := s.assets.GetAsset(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrAssetNotFound) {
			return nil, err
		}
		// Исходник ещё не сохранён (временный результат правки на клиенте):
		// обязателен встроенный payload
		if req.ImageBase64 == "" || req.Metadata == nil {
			return nil, fmt.Errorf("%w: asset %s is not stored, imageBase64 and metadata are required", ErrValidation, id)
		}
		source = nil
	}

	image, err := s.resolveImage(ctx, source, req.ImageBase64)
	if err != nil {
		return nil, err
	}

	meta := mergeSourceMetadata(source, req.Metadata)
	now := time.Now().UTC()

	asset := &domain.Asset{
		ID:               assetid.Generate(meta.Name),
		Type:             meta.Type,
		Category:         domain.CategoryForType(meta.Type),
		Name:             meta.Name,
		Description:      meta.Description,
		GenerationPrompt: resolveGenerationPrompt(source, req, meta),
		Provider:         domain.ProviderAIEdited,
		ProjectID:        meta.ProjectID,
		Tags:             append([]string(nil), meta.Tags...),
		Version:          1,
		ParentAssetID:    nil,
		EditHistory:      []domain.EditHistoryEntry{},
		Format:           meta.Format,
		AspectRatio:      meta.AspectRatio,
		FileSize:         int64(len(image)),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if width, height, err := s.thumbs.Dimensions(image); err == nil {
		asset.Width = width
		asset.Height = height
	} else {
		log.Printf("[EditService] failed to probe image dimensions for save-as-new of %s: %v", id, err)
	}

	asset.URL = s.assets.imageURL(asset.ID, asset.Format)
	asset.ThumbnailURL = s.assets.thumbURL(asset.ID, asset.Format)

	if err := s.assets.SaveAsset(ctx, asset, image); err != nil {
		return nil, err
	}

	s.persistThumbnail(ctx, asset, image)

	return asset, nil
}

// resolveImage выбирает байты изображения: встроенный base64 приоритетнее,
// иначе читается существующий файл исходника
func (s *EditService) resolveImage(ctx context.Context, source *domain.Asset, imageBase64 string) ([]byte, error) {
	if imageBase64 != "" {
		data, err := base64.StdEncoding.DecodeString(imageBase64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid imageBase64: %v", ErrValidation, err)
		}
		if len(data) == 0 {
			return nil, fmt.Errorf("%w: imageBase64 decodes to empty payload", ErrValidation)
		}
		return data, nil
	}
	return s.assets.ReadImage(ctx, source)
}

// mergeSourceMetadata собирает метаданные нового корня: поля исходника,
// поверх — явно переданные в запросе
func mergeSourceMetadata(source *domain.Asset, meta *domain.SaveAsNewMetadata) domain.SaveAsNewMetadata {
	merged := domain.SaveAsNewMetadata{}
	if source != nil {
		merged = domain.SaveAsNewMetadata{
			Name:             source.Name,
			Description:      source.Description,
			Type:             source.Type,
			ProjectID:        source.ProjectID,
			Tags:             source.Tags,
			AspectRatio:      source.AspectRatio,
			Format:           source.Format,
			GenerationPrompt: source.GenerationPrompt,
		}
	}
	if meta != nil {
		if meta.Name != "" {
			merged.Name = meta.Name
		}
		if meta.Description != "" {
			merged.Description = meta.Description
		}
		if meta.Type != "" {
			merged.Type = meta.Type
		}
		if meta.ProjectID != "" {
			merged.ProjectID = meta.ProjectID
		}
		if len(meta.Tags) > 0 {
			merged.Tags = meta.Tags
		}
		if meta.AspectRatio != "" {
			merged.AspectRatio = meta.AspectRatio
		}
		if meta.Format != "" {
			merged.Format = meta.Format
		}
		if meta.GenerationPrompt != "" {
			merged.GenerationPrompt = meta.GenerationPrompt
		}
	}
	if merged.Format == "" {
		merged.Format = "png"
	}
	return merged
}

// resolveGenerationPrompt выбирает промпт для нового корня: явный
// editPrompt из запроса, иначе последняя запись истории правок исходника,
// иначе существующий generationPrompt
func resolveGenerationPrompt(source *domain.Asset, req domain.SaveAsNewRequest, meta domain.SaveAsNewMetadata) string {
	if req.EditPrompt != "" {
		return req.EditPrompt
	}
	if source != nil && len(source.EditHistory) > 0 {
		return source.EditHistory[len(source.EditHistory)-1].EditPrompt
	}
	return meta.GenerationPrompt
}

// persistThumbnail генерирует и сохраняет миниатюру. Неудача не фатальна:
// отсутствие миниатюры — мягкая ошибка, запись уже сохранена.
func (s *EditService) persistThumbnail(ctx context.Context, asset *domain.Asset, image []byte) {
	thumb, err := s.thumbs.Thumbnail(image, asset.Format)
	if err != nil {
		log.Printf("[EditService] failed to generate thumbnail for %s: %v", asset.ID, err)
		return
	}
	if err := s.assets.SaveThumbnail(ctx, asset, thumb); err != nil {
		log.Printf("[EditService] failed to save thumbnail for %s: %v", asset.ID, err)
	}
}
