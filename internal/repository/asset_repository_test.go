package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"echostudio/internal/domain"
)

func testAsset(id string) *domain.Asset {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &domain.Asset{
		ID:          id,
		Type:        domain.AssetTypeProp,
		Category:    "props",
		Name:        "Space Helmet",
		Provider:    domain.ProviderUpload,
		ProjectID:   "proj_1",
		Tags:        []string{"sci-fi"},
		Version:     1,
		EditHistory: []domain.EditHistoryEntry{},
		Format:      "png",
		FileSize:    1024,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	repo, err := NewAssetRepository(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	ctx := context.Background()

	asset := testAsset("ast_helmet_1735689600000_a1b2")
	if err := repo.Save(ctx, asset); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, err := repo.Get(ctx, asset.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Name != asset.Name || got.Version != asset.Version || got.FileSize != asset.FileSize {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	repo, err := NewAssetRepository(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	ctx := context.Background()

	asset := testAsset("ast_helmet_1735689600000_a1b2")
	if err := repo.Save(ctx, asset); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	first, _ := repo.Get(ctx, asset.ID)
	first.Name = "mutated"
	first.Tags[0] = "mutated"

	second, _ := repo.Get(ctx, asset.ID)
	if second.Name != "Space Helmet" || second.Tags[0] != "sci-fi" {
		t.Fatal("stored record must not be affected by mutations of returned copies")
	}
}

func TestGetMissing(t *testing.T) {
	repo, err := NewAssetRepository(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}

	_, err = repo.Get(context.Background(), "ast_1735689600000_zzzz")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteThenGet(t *testing.T) {
	repo, err := NewAssetRepository(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	ctx := context.Background()

	asset := testAsset("ast_helmet_1735689600000_a1b2")
	if err := repo.Save(ctx, asset); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	if err := repo.Delete(ctx, asset.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := repo.Get(ctx, asset.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}

	// Повторное удаление сообщает об отсутствии, но не паникует
	if err := repo.Delete(ctx, asset.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestReloadFromDisk(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	repo, err := NewAssetRepository(dir)
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}

	parent := "ast_helmet_1735689600000_a1b2"
	child := testAsset("ast_helmet_1735689700000_c3d4")
	child.Version = 2
	child.ParentAssetID = &parent
	child.EditHistory = []domain.EditHistoryEntry{
		{Timestamp: time.Now().UTC(), EditPrompt: "make it gold", PreviousAssetID: parent},
	}

	if err := repo.Save(ctx, testAsset(parent)); err != nil {
		t.Fatalf("save parent failed: %v", err)
	}
	if err := repo.Save(ctx, child); err != nil {
		t.Fatalf("save child failed: %v", err)
	}

	// Второй экземпляр читает тот же файл
	reopened, err := NewAssetRepository(dir)
	if err != nil {
		t.Fatalf("failed to reopen repository: %v", err)
	}

	got, err := reopened.Get(ctx, child.ID)
	if err != nil {
		t.Fatalf("get after reload failed: %v", err)
	}
	if got.ParentAssetID == nil || *got.ParentAssetID != parent {
		t.Fatalf("parent reference lost on reload: %+v", got)
	}
	if len(got.EditHistory) != 1 || got.EditHistory[0].EditPrompt != "make it gold" {
		t.Fatalf("edit history lost on reload: %+v", got.EditHistory)
	}
	if reopened.Count(ctx) != 2 {
		t.Fatalf("expected 2 records after reload, got %d", reopened.Count(ctx))
	}
}

func TestListOrderedByCreatedAtDesc(t *testing.T) {
	repo, err := NewAssetRepository(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	ctx := context.Background()

	older := testAsset("ast_old_1735689600000_a1b2")
	older.CreatedAt = time.Now().Add(-time.Hour)
	newer := testAsset("ast_new_1735689700000_c3d4")
	newer.CreatedAt = time.Now()

	if err := repo.Save(ctx, older); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := repo.Save(ctx, newer); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 2 || list[0].ID != newer.ID {
		t.Fatalf("expected newest first, got %+v", list)
	}
}
