package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"echostudio/internal/domain"
	"echostudio/internal/provider"
)

type fakeEditor struct {
	result  []byte
	err     error
	lastReq provider.EditRequest
	calls   int
}

func (f *fakeEditor) Edit(ctx context.Context, req provider.EditRequest) ([]byte, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func newEditEnv(t *testing.T) (*testEnv, *EditService, *fakeEditor) {
	t.Helper()
	env := newTestEnv(t)
	editor := &fakeEditor{result: []byte("edited image bytes")}
	return env, NewEditService(env.assets, editor, env.thumbs), editor
}

func TestEditAssetCreatesNextVersion(t *testing.T) {
	env, edits, editor := newEditEnv(t)
	ctx := context.Background()

	source := rootAsset("Helmet")
	require.NoError(t, env.assets.SaveAsset(ctx, source, []byte("v1")))

	next, err := edits.EditAsset(ctx, source.ID, "make it golden", "nano-banana")
	require.NoError(t, err)

	require.NotEqual(t, source.ID, next.ID)
	require.Equal(t, source.Version+1, next.Version)
	require.NotNil(t, next.ParentAssetID)
	require.Equal(t, source.ID, *next.ParentAssetID)
	require.Len(t, next.EditHistory, 1)
	require.Equal(t, "make it golden", next.EditHistory[0].EditPrompt)
	require.Equal(t, source.ID, next.EditHistory[0].PreviousAssetID)

	// Поля пересчитаны под новое изображение
	require.Equal(t, int64(len(editor.result)), next.FileSize)
	require.Contains(t, next.URL, next.ID+"."+next.Format)
	require.Contains(t, next.ThumbnailURL, next.ID+".thumb."+next.Format)

	// Запрос к провайдеру собран из исходника
	require.Equal(t, 1, editor.calls)
	require.Equal(t, "make it golden", editor.lastReq.EditPrompt)
	require.Equal(t, source.Description, editor.lastReq.Description)
	require.Equal(t, source.AspectRatio, editor.lastReq.AspectRatio)
	require.Equal(t, "nano-banana", editor.lastReq.Model)
	require.Contains(t, editor.lastReq.BaseImageURL, source.ID)

	// Исходник не изменился
	reread, err := env.assets.GetAsset(ctx, source.ID)
	require.NoError(t, err)
	require.Equal(t, source, reread)

	// Новая версия записана вместе с изображением
	saved, err := env.assets.GetAsset(ctx, next.ID)
	require.NoError(t, err)
	require.Equal(t, next, saved)
	data, err := env.assets.ReadImage(ctx, saved)
	require.NoError(t, err)
	require.Equal(t, editor.result, data)
}

func TestEditAssetAccumulatesHistory(t *testing.T) {
	env, edits, _ := newEditEnv(t)
	ctx := context.Background()

	source := rootAsset("Helmet")
	require.NoError(t, env.assets.SaveAsset(ctx, source, []byte("v1")))

	v2, err := edits.EditAsset(ctx, source.ID, "first pass", "")
	require.NoError(t, err)
	v3, err := edits.EditAsset(ctx, v2.ID, "second pass", "")
	require.NoError(t, err)

	require.Equal(t, 3, v3.Version)
	require.Len(t, v3.EditHistory, 2)
	require.Equal(t, "first pass", v3.EditHistory[0].EditPrompt)
	require.Equal(t, "second pass", v3.EditHistory[1].EditPrompt)
	require.Equal(t, v2.ID, v3.EditHistory[1].PreviousAssetID)

	lineage, err := env.assets.GetLineage(ctx, v3.ID)
	require.NoError(t, err)
	require.Equal(t, 3, lineage.TotalVersions)
	require.Equal(t, source.ID, lineage.Lineage[0].ID)
	require.Equal(t, v2.ID, lineage.Lineage[1].ID)
	require.Equal(t, v3.ID, lineage.Lineage[2].ID)
}

func TestEditAssetValidation(t *testing.T) {
	env, edits, editor := newEditEnv(t)
	ctx := context.Background()

	source := rootAsset("Helmet")
	require.NoError(t, env.assets.SaveAsset(ctx, source, []byte("v1")))

	_, err := edits.EditAsset(ctx, source.ID, "", "")
	require.ErrorIs(t, err, ErrValidation)
	require.Zero(t, editor.calls)

	_, err = edits.EditAsset(ctx, "ast_1735689600000_zzzz", "prompt", "")
	require.ErrorIs(t, err, ErrAssetNotFound)
}

func TestEditAssetProviderFailure(t *testing.T) {
	env, edits, editor := newEditEnv(t)
	ctx := context.Background()

	source := rootAsset("Helmet")
	require.NoError(t, env.assets.SaveAsset(ctx, source, []byte("v1")))

	editor.err = fmt.Errorf("upstream timeout")
	_, err := edits.EditAsset(ctx, source.ID, "prompt", "")
	require.ErrorIs(t, err, ErrProvider)

	// Сбой провайдера не оставляет новых записей
	all, err := env.assets.ListAssets(ctx, "", "")
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestEditAssetUnusableProviderImage(t *testing.T) {
	env, edits, _ := newEditEnv(t)
	ctx := context.Background()

	source := rootAsset("Helmet")
	require.NoError(t, env.assets.SaveAsset(ctx, source, []byte("v1")))

	env.thumbs.failDims = true
	_, err := edits.EditAsset(ctx, source.ID, "prompt", "")
	require.ErrorIs(t, err, ErrProvider)
}

func TestSaveAsNewResetsLineage(t *testing.T) {
	env, edits, _ := newEditEnv(t)
	ctx := context.Background()

	source := rootAsset("Helmet")
	require.NoError(t, env.assets.SaveAsset(ctx, source, []byte("v1")))

	v2, err := edits.EditAsset(ctx, source.ID, "add visor", "")
	require.NoError(t, err)
	v3, err := edits.EditAsset(ctx, v2.ID, "final polish", "")
	require.NoError(t, err)

	fresh, err := edits.SaveAsNew(ctx, v3.ID, domain.SaveAsNewRequest{})
	require.NoError(t, err)

	// Независимый корень: линия версий обнулена
	require.Equal(t, 1, fresh.Version)
	require.Nil(t, fresh.ParentAssetID)
	require.Empty(t, fresh.EditHistory)
	require.Equal(t, domain.ProviderAIEdited, fresh.Provider)
	require.NotEqual(t, v3.ID, fresh.ID)

	// От визуального источника остался только текст последней правки
	require.Equal(t, "final polish", fresh.GenerationPrompt)

	// Метаданные унаследованы от исходника
	require.Equal(t, v3.Name, fresh.Name)
	require.Equal(t, v3.Type, fresh.Type)
	require.Equal(t, v3.ProjectID, fresh.ProjectID)

	lineage, err := env.assets.GetLineage(ctx, fresh.ID)
	require.NoError(t, err)
	require.Equal(t, 1, lineage.TotalVersions)

	// Исходная цепочка цела
	oldLineage, err := env.assets.GetLineage(ctx, v3.ID)
	require.NoError(t, err)
	require.Equal(t, 3, oldLineage.TotalVersions)
}

func TestSaveAsNewExplicitPromptWins(t *testing.T) {
	env, edits, _ := newEditEnv(t)
	ctx := context.Background()

	source := rootAsset("Helmet")
	require.NoError(t, env.assets.SaveAsset(ctx, source, []byte("v1")))
	v2, err := edits.EditAsset(ctx, source.ID, "add visor", "")
	require.NoError(t, err)

	fresh, err := edits.SaveAsNew(ctx, v2.ID, domain.SaveAsNewRequest{EditPrompt: "custom description"})
	require.NoError(t, err)
	require.Equal(t, "custom description", fresh.GenerationPrompt)
}

func TestSaveAsNewFromUnstoredAsset(t *testing.T) {
	env, edits, _ := newEditEnv(t)
	ctx := context.Background()

	image := []byte("client side edit result")
	req := domain.SaveAsNewRequest{
		ImageBase64: base64.StdEncoding.EncodeToString(image),
		Metadata: &domain.SaveAsNewMetadata{
			Name:             "Temp Result",
			Description:      "client side preview",
			Type:             domain.AssetTypeEffect,
			ProjectID:        "proj_9",
			Tags:             []string{"draft"},
			AspectRatio:      "16:9",
			Format:           "webp",
			GenerationPrompt: "glowing particles",
		},
	}

	fresh, err := edits.SaveAsNew(ctx, "ast_temp_1735689600000_a1b2", req)
	require.NoError(t, err)

	require.Equal(t, 1, fresh.Version)
	require.Nil(t, fresh.ParentAssetID)
	require.Equal(t, "Temp Result", fresh.Name)
	require.Equal(t, "effects", fresh.Category)
	require.Equal(t, "webp", fresh.Format)
	require.Equal(t, "glowing particles", fresh.GenerationPrompt)
	require.Equal(t, int64(len(image)), fresh.FileSize)

	data, err := env.assets.ReadImage(ctx, fresh)
	require.NoError(t, err)
	require.Equal(t, image, data)
}

func TestSaveAsNewUnstoredWithoutPayload(t *testing.T) {
	_, edits, _ := newEditEnv(t)

	_, err := edits.SaveAsNew(context.Background(), "ast_temp_1735689600000_a1b2", domain.SaveAsNewRequest{})
	require.ErrorIs(t, err, ErrValidation)

	_, err = edits.SaveAsNew(context.Background(), "ast_temp_1735689600000_a1b2", domain.SaveAsNewRequest{
		ImageBase64: base64.StdEncoding.EncodeToString([]byte("img")),
	})
	require.ErrorIs(t, err, ErrValidation)
}

func TestSaveAsNewInvalidBase64(t *testing.T) {
	env, edits, _ := newEditEnv(t)
	ctx := context.Background()

	source := rootAsset("Helmet")
	require.NoError(t, env.assets.SaveAsset(ctx, source, []byte("v1")))

	_, err := edits.SaveAsNew(ctx, source.ID, domain.SaveAsNewRequest{ImageBase64: "%%%not-base64%%%"})
	require.ErrorIs(t, err, ErrValidation)
}

func TestSaveAsNewMetadataOverridesSource(t *testing.T) {
	env, edits, _ := newEditEnv(t)
	ctx := context.Background()

	source := rootAsset("Helmet")
	require.NoError(t, env.assets.SaveAsset(ctx, source, []byte("v1")))

	fresh, err := edits.SaveAsNew(ctx, source.ID, domain.SaveAsNewRequest{
		Metadata: &domain.SaveAsNewMetadata{
			Name: "Renamed Copy",
			Tags: []string{"fork"},
		},
	})
	require.NoError(t, err)

	require.Equal(t, "Renamed Copy", fresh.Name)
	require.Equal(t, []string{"fork"}, fresh.Tags)
	// Остальное дотянуто из исходника
	require.Equal(t, source.Type, fresh.Type)
	require.Equal(t, source.ProjectID, fresh.ProjectID)
	require.Equal(t, source.AspectRatio, fresh.AspectRatio)
	require.Equal(t, source.Format, fresh.Format)
}
