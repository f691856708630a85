package domain

import (
	"time"
)

// Типы ассетов, которые умеет хранить система
const (
	AssetTypeCharacter  = "character"
	AssetTypeProp       = "prop"
	AssetTypeLocation   = "location"
	AssetTypeEffect     = "effect"
	AssetTypeStoryboard = "storyboard"
)

// Источники происхождения пикселей
const (
	ProviderUpload   = "upload"
	ProviderAIEdited = "ai-edited"
)

// Asset представляет одну версию сгенерированного или загруженного изображения.
// Поля version/parentAssetId/editHistory заполняются один раз при создании записи
// и после этого не меняются — редактирование всегда создаёт новую запись.
type Asset struct {
	ID               string             `json:"id"`
	Type             string             `json:"type"`
	Category         string             `json:"category"`
	Name             string             `json:"name"`
	Description      string             `json:"description"`
	GenerationPrompt string             `json:"generationPrompt"`
	Provider         string             `json:"provider"`
	ProjectID        string             `json:"projectId"`
	Tags             []string           `json:"tags"`
	RelatedAssets    []string           `json:"relatedAssets"`
	UsedInScenes     []string           `json:"usedInScenes"`
	Version          int                `json:"version"`
	ParentAssetID    *string            `json:"parentAssetId"`
	EditHistory      []EditHistoryEntry `json:"editHistory"`
	Format           string             `json:"format"`
	AspectRatio      string             `json:"aspectRatio"`
	Width            int                `json:"width"`
	Height           int                `json:"height"`
	FileSize         int64              `json:"fileSize"`
	URL              string             `json:"url"`
	ThumbnailURL     string             `json:"thumbnailUrl"`
	CreatedAt        time.Time          `json:"createdAt"`
	UpdatedAt        time.Time          `json:"updatedAt"`
}

// EditHistoryEntry — одна правка внутри цепочки версий
type EditHistoryEntry struct {
	Timestamp       time.Time `json:"timestamp"`
	EditPrompt      string    `json:"editPrompt"`
	PreviousAssetID string    `json:"previousAssetId"`
}

// IsRoot сообщает, является ли ассет корнем цепочки версий
func (a *Asset) IsRoot() bool {
	return a.ParentAssetID == nil
}

// Clone возвращает глубокую копию записи
func (a *Asset) Clone() *Asset {
	c := *a
	if a.ParentAssetID != nil {
		parent := *a.ParentAssetID
		c.ParentAssetID = &parent
	}
	c.Tags = cloneStrings(a.Tags)
	c.RelatedAssets = cloneStrings(a.RelatedAssets)
	c.UsedInScenes = cloneStrings(a.UsedInScenes)
	if a.EditHistory != nil {
		c.EditHistory = append([]EditHistoryEntry{}, a.EditHistory...)
	}
	return &c
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string{}, s...)
}

// CategoryForType возвращает категорию хранения (тип во множественном числе)
func CategoryForType(assetType string) string {
	switch assetType {
	case AssetTypeCharacter:
		return "characters"
	case AssetTypeProp:
		return "props"
	case AssetTypeLocation:
		return "locations"
	case AssetTypeEffect:
		return "effects"
	case AssetTypeStoryboard:
		return "storyboards"
	default:
		return assetType + "s"
	}
}

// ValidAssetType проверяет, что тип входит в список поддерживаемых
func ValidAssetType(assetType string) bool {
	switch assetType {
	case AssetTypeCharacter, AssetTypeProp, AssetTypeLocation, AssetTypeEffect, AssetTypeStoryboard:
		return true
	}
	return false
}

// AssetUpdate описывает частичное обновление записи. Поля линии версий
// (version, parentAssetId, editHistory) здесь намеренно отсутствуют.
type AssetUpdate struct {
	Name             *string   `json:"name,omitempty"`
	Description      *string   `json:"description,omitempty"`
	GenerationPrompt *string   `json:"generationPrompt,omitempty"`
	Category         *string   `json:"category,omitempty"`
	ProjectID        *string   `json:"projectId,omitempty"`
	Tags             *[]string `json:"tags,omitempty"`
	RelatedAssets    *[]string `json:"relatedAssets,omitempty"`
	UsedInScenes     *[]string `json:"usedInScenes,omitempty"`
}

// AssetLineage — восстановленная цепочка версий от корня к запрошенному ассету
type AssetLineage struct {
	AssetID        string  `json:"assetId"`
	CurrentVersion int     `json:"currentVersion"`
	TotalVersions  int     `json:"totalVersions"`
	Lineage        []Asset `json:"lineage"`
}

// SaveAsNewMetadata — встроенные метаданные для save-as-new, когда исходный
// ассет ещё не сохранён (временный результат правки на клиенте)
type SaveAsNewMetadata struct {
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	Type             string   `json:"type"`
	ProjectID        string   `json:"projectId"`
	Tags             []string `json:"tags"`
	AspectRatio      string   `json:"aspectRatio"`
	Format           string   `json:"format"`
	GenerationPrompt string   `json:"generationPrompt"`
}

// SaveAsNewRequest — тело запроса save-as-new
type SaveAsNewRequest struct {
	ImageBase64 string             `json:"imageBase64,omitempty"`
	Metadata    *SaveAsNewMetadata `json:"metadata,omitempty"`
	EditPrompt  string             `json:"editPrompt,omitempty"`
}
