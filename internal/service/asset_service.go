package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"echostudio/internal/assetid"
	"echostudio/internal/domain"
	"echostudio/internal/repository"
	"echostudio/internal/storage"
	"echostudio/internal/thumbnail"
)

// AssetService — единая точка чтения и записи записей ассетов и их
// бинарных данных. Координирует файл изображения и метаданные так, чтобы
// они создавались и удалялись вместе.
type AssetService struct {
	repo    *repository.AssetRepository
	blobs   storage.Storage
	thumbs  thumbnail.Generator
	baseURL string
}

func NewAssetService(
	repo *repository.AssetRepository,
	blobs storage.Storage,
	thumbs thumbnail.Generator,
	baseURL string,
) *AssetService {
	return &AssetService{
		repo:    repo,
		blobs:   blobs,
		thumbs:  thumbs,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// imageURL возвращает адресуемый URL изображения ассета
func (s *AssetService) imageURL(assetID, format string) string {
	return fmt.Sprintf("%s/files/%s", s.baseURL, storage.ImageKey(assetID, format))
}

func (s *AssetService) thumbURL(assetID, format string) string {
	return fmt.Sprintf("%s/files/%s", s.baseURL, storage.ThumbKey(assetID, format))
}

// GetAsset возвращает запись ассета. Чтение без побочных эффектов.
func (s *AssetService) GetAsset(ctx context.Context, id string) (*domain.Asset, error) {
	asset, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, id)
		}
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return asset, nil
}

// SaveAsset сохраняет новую запись вместе с изображением. Порядок строгий:
// сначала файл, потом метаданные. Если запись метаданных не удалась,
// только что записанный файл убирается, чтобы хранилища не разошлись.
func (s *AssetService) SaveAsset(ctx context.Context, asset *domain.Asset, image []byte) error {
	if asset == nil || len(image) == 0 {
		return fmt.Errorf("%w: asset and image data are required", ErrValidation)
	}
	if !assetid.IsValid(asset.ID) {
		return fmt.Errorf("%w: malformed asset id %q", ErrValidation, asset.ID)
	}
	if asset.Format == "" {
		return fmt.Errorf("%w: asset format is required", ErrValidation)
	}
	if err := checkLineageFields(asset); err != nil {
		return err
	}

	key := storage.ImageKey(asset.ID, asset.Format)
	if err := s.blobs.Put(ctx, key, image); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}

	if err := s.repo.Save(ctx, asset); err != nil {
		// Метаданные не записались — убираем файл, чтобы не оставить сироту
		if deleteErr := s.blobs.Delete(ctx, key); deleteErr != nil {
			log.Printf("[AssetService] failed to delete blob after metadata error: %v", deleteErr)
		}
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}

	return nil
}

// UploadParams — пользовательские поля загружаемого ассета
type UploadParams struct {
	Name        string
	Description string
	Type        string
	ProjectID   string
	Tags        []string
}

// CreateUpload создаёт корневой ассет из загруженного изображения:
// version 1, без родителя, с пустой историей правок
func (s *AssetService) CreateUpload(ctx context.Context, p UploadParams, image []byte, format string) (*domain.Asset, error) {
	if p.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if p.ProjectID == "" {
		return nil, fmt.Errorf("%w: projectId is required", ErrValidation)
	}
	if !domain.ValidAssetType(p.Type) {
		return nil, fmt.Errorf("%w: unknown asset type %q", ErrValidation, p.Type)
	}

	now := time.Now().UTC()
	asset := &domain.Asset{
		ID:          assetid.Generate(p.Name),
		Type:        p.Type,
		Category:    domain.CategoryForType(p.Type),
		Name:        p.Name,
		Description: p.Description,
		Provider:    domain.ProviderUpload,
		ProjectID:   p.ProjectID,
		Tags:        append([]string(nil), p.Tags...),
		Version:     1,
		EditHistory: []domain.EditHistoryEntry{},
		Format:      format,
		FileSize:    int64(len(image)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if width, height, err := s.thumbs.Dimensions(image); err == nil {
		asset.Width = width
		asset.Height = height
		asset.AspectRatio = aspectRatioFor(width, height)
	} else {
		log.Printf("[AssetService] failed to probe uploaded image dimensions: %v", err)
	}

	asset.URL = s.imageURL(asset.ID, asset.Format)
	asset.ThumbnailURL = s.thumbURL(asset.ID, asset.Format)

	if err := s.SaveAsset(ctx, asset, image); err != nil {
		return nil, err
	}

	if thumb, err := s.thumbs.Thumbnail(image, asset.Format); err == nil {
		if err := s.SaveThumbnail(ctx, asset, thumb); err != nil {
			log.Printf("[AssetService] failed to save upload thumbnail for %s: %v", asset.ID, err)
		}
	} else {
		log.Printf("[AssetService] failed to generate upload thumbnail for %s: %v", asset.ID, err)
	}

	return asset, nil
}

// aspectRatioFor подбирает ближайшее из типовых соотношений сторон
func aspectRatioFor(width, height int) string {
	if width <= 0 || height <= 0 {
		return ""
	}
	ratio := float64(width) / float64(height)
	known := []struct {
		label string
		value float64
	}{
		{"1:1", 1},
		{"4:3", 4.0 / 3.0},
		{"3:4", 3.0 / 4.0},
		{"16:9", 16.0 / 9.0},
		{"9:16", 9.0 / 16.0},
	}
	best := known[0]
	bestDiff := ratio - best.value
	if bestDiff < 0 {
		bestDiff = -bestDiff
	}
	for _, candidate := range known[1:] {
		diff := ratio - candidate.value
		if diff < 0 {
			diff = -diff
		}
		if diff < bestDiff {
			best = candidate
			bestDiff = diff
		}
	}
	return best.label
}

// checkLineageFields проверяет инварианты полей линии версий при создании
func checkLineageFields(asset *domain.Asset) error {
	if asset.IsRoot() {
		if asset.Version != 1 {
			return fmt.Errorf("%w: root asset must have version 1, got %d", ErrValidation, asset.Version)
		}
		if len(asset.EditHistory) != 0 {
			return fmt.Errorf("%w: root asset must have empty edit history", ErrValidation)
		}
		return nil
	}
	if asset.Version < 2 {
		return fmt.Errorf("%w: derived asset must have version >= 2, got %d", ErrValidation, asset.Version)
	}
	return nil
}

// SaveThumbnail сохраняет миниатюру рядом с изображением ассета
func (s *AssetService) SaveThumbnail(ctx context.Context, asset *domain.Asset, thumb []byte) error {
	if len(thumb) == 0 {
		return fmt.Errorf("%w: thumbnail data is required", ErrValidation)
	}
	if err := s.blobs.Put(ctx, storage.ThumbKey(asset.ID, asset.Format), thumb); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

// ReadImage читает бинарные данные изображения ассета
func (s *AssetService) ReadImage(ctx context.Context, asset *domain.Asset) ([]byte, error) {
	data, err := s.blobs.Get(ctx, storage.ImageKey(asset.ID, asset.Format))
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: image file for %s is missing", ErrAssetNotFound, asset.ID)
		}
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return data, nil
}

// UpdateAsset вливает частичные поля в существующую запись и обновляет
// updatedAt. Поля линии версий здесь недоступны — они записываются один
// раз при создании.
func (s *AssetService) UpdateAsset(ctx context.Context, id string, upd domain.AssetUpdate) (*domain.Asset, error) {
	asset, err := s.GetAsset(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.Name != nil {
		asset.Name = *upd.Name
	}
	if upd.Description != nil {
		asset.Description = *upd.Description
	}
	if upd.GenerationPrompt != nil {
		asset.GenerationPrompt = *upd.GenerationPrompt
	}
	if upd.Category != nil {
		asset.Category = *upd.Category
	}
	if upd.ProjectID != nil {
		asset.ProjectID = *upd.ProjectID
	}
	if upd.Tags != nil {
		asset.Tags = append([]string(nil), (*upd.Tags)...)
	}
	if upd.RelatedAssets != nil {
		asset.RelatedAssets = append([]string(nil), (*upd.RelatedAssets)...)
	}
	if upd.UsedInScenes != nil {
		asset.UsedInScenes = append([]string(nil), (*upd.UsedInScenes)...)
	}
	asset.UpdatedAt = time.Now().UTC()

	if err := s.repo.Save(ctx, asset); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return asset, nil
}

// ReplaceImage заменяет изображение существующего ассета на новые байты,
// перегенерирует миниатюру и пересчитывает размер и габариты
func (s *AssetService) ReplaceImage(ctx context.Context, id string, image []byte) (*domain.Asset, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: image data is required", ErrValidation)
	}

	asset, err := s.GetAsset(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.blobs.Put(ctx, storage.ImageKey(asset.ID, asset.Format), image); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	asset.FileSize = int64(len(image))
	if width, height, err := s.thumbs.Dimensions(image); err == nil {
		asset.Width = width
		asset.Height = height
	} else {
		log.Printf("[AssetService] failed to probe replaced image dimensions for %s: %v", id, err)
	}
	asset.UpdatedAt = time.Now().UTC()

	if thumb, err := s.thumbs.Thumbnail(image, asset.Format); err == nil {
		if err := s.SaveThumbnail(ctx, asset, thumb); err != nil {
			log.Printf("[AssetService] failed to save replaced thumbnail for %s: %v", id, err)
		}
	} else {
		log.Printf("[AssetService] failed to generate replacement thumbnail for %s: %v", id, err)
	}

	if err := s.repo.Save(ctx, asset); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return asset, nil
}

// DeleteAsset удаляет изображение, миниатюру и запись метаданных.
// Идемпотентен: повторное удаление не является ошибкой, частично
// завершённая очистка никогда не прерывает остальные шаги.
func (s *AssetService) DeleteAsset(ctx context.Context, id string) error {
	asset, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Printf("[AssetService] delete of unknown asset %s, nothing to do", id)
			return nil
		}
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}

	if err := s.blobs.Delete(ctx, storage.ImageKey(asset.ID, asset.Format)); err != nil {
		log.Printf("[AssetService] warning: failed to delete image for %s: %v", id, err)
	}
	if err := s.blobs.Delete(ctx, storage.ThumbKey(asset.ID, asset.Format)); err != nil {
		log.Printf("[AssetService] warning: failed to delete thumbnail for %s: %v", id, err)
	}

	if err := s.repo.Delete(ctx, id); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

// ListAssets возвращает ассеты, опционально отфильтрованные по проекту и типу
func (s *AssetService) ListAssets(ctx context.Context, projectID, assetType string) ([]domain.Asset, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	if projectID == "" && assetType == "" {
		return all, nil
	}

	filtered := make([]domain.Asset, 0, len(all))
	for _, asset := range all {
		if projectID != "" && asset.ProjectID != projectID {
			continue
		}
		if assetType != "" && asset.Type != assetType {
			continue
		}
		filtered = append(filtered, asset)
	}
	return filtered, nil
}

// SweepOrphans обходит хранилище и пишет в лог расхождения между
// метаданными и файлами: запись без файла изображения и файлы без записи.
// Ничего не удаляет — повреждённое состояние фиксируется, а не «чинится».
func (s *AssetService) SweepOrphans(ctx context.Context) {
	assets, err := s.repo.List(ctx)
	if err != nil {
		log.Printf("[Sweep] failed to list metadata: %v", err)
		return
	}

	expected := make(map[string]bool, len(assets)*2)
	missing := 0
	for _, asset := range assets {
		imageKey := storage.ImageKey(asset.ID, asset.Format)
		expected[imageKey] = true
		expected[storage.ThumbKey(asset.ID, asset.Format)] = true

		exists, err := s.blobs.Exists(ctx, imageKey)
		if err != nil {
			log.Printf("[Sweep] failed to check %s: %v", imageKey, err)
			continue
		}
		if !exists {
			missing++
			log.Printf("[Sweep] метаданные %s остались без файла изображения (%s)", asset.ID, imageKey)
		}
	}

	keys, err := s.blobs.Keys(ctx)
	if err != nil {
		log.Printf("[Sweep] failed to list blob keys: %v", err)
		return
	}

	orphans := 0
	for _, key := range keys {
		if !expected[key] {
			orphans++
			log.Printf("[Sweep] файл %s не привязан ни к одной записи", key)
		}
	}

	if missing == 0 && orphans == 0 {
		log.Printf("[Sweep] проверено записей: %d, расхождений нет", len(assets))
	} else {
		log.Printf("[Sweep] проверено записей: %d, записей без файла: %d, файлов без записи: %d", len(assets), missing, orphans)
	}
}
