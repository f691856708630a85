package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"

	"echostudio/internal/domain"
)

// ErrNotFound возвращается, когда записи с таким идентификатором нет
var ErrNotFound = errors.New("asset not found")

const metadataFileName = "assets.json"

// AssetRepository — файловое хранилище метаданных ассетов. Все записи живут
// в одном JSON-файле; карта в памяти — источник чтений, файл переписывается
// целиком на каждую запись через временный файл и rename. Безопасно только
// при единственном экземпляре процесса.
type AssetRepository struct {
	path   string
	mu     sync.RWMutex
	assets map[string]*domain.Asset
}

// NewAssetRepository открывает (или создаёт) хранилище в каталоге dataDir
func NewAssetRepository(dataDir string) (*AssetRepository, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	r := &AssetRepository{
		path:   filepath.Join(dataDir, metadataFileName),
		assets: make(map[string]*domain.Asset),
	}

	if err := r.load(); err != nil {
		return nil, err
	}

	return r, nil
}

// load читает JSON-файл с диска; отсутствие файла — пустое хранилище
func (r *AssetRepository) load() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read metadata file: %w", err)
	}

	var records map[string]*domain.Asset
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("failed to parse metadata file %s: %w", r.path, err)
	}

	r.assets = records
	if r.assets == nil {
		r.assets = make(map[string]*domain.Asset)
	}
	return nil
}

// flushLocked переписывает файл метаданных. Вызывается только под write-lock.
// Запись атомарная: временный файл рядом, затем rename.
func (r *AssetRepository) flushLocked() error {
	data, err := json.MarshalIndent(r.assets, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	tmpPath := fmt.Sprintf("%s.%s.tmp", r.path, uuid.New().String())
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}

	if err := os.Rename(tmpPath, r.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace metadata file: %w", err)
	}

	return nil
}

// Get возвращает копию записи по идентификатору
func (r *AssetRepository) Get(ctx context.Context, id string) (*domain.Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	asset, ok := r.assets[id]
	if !ok {
		return nil, ErrNotFound
	}
	return asset.Clone(), nil
}

// Save создаёт или перезаписывает запись целиком
func (r *AssetRepository) Save(ctx context.Context, asset *domain.Asset) error {
	if asset.ID == "" {
		return fmt.Errorf("asset id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	prev, existed := r.assets[asset.ID]
	r.assets[asset.ID] = asset.Clone()
	if err := r.flushLocked(); err != nil {
		if existed {
			r.assets[asset.ID] = prev
		} else {
			delete(r.assets, asset.ID)
		}
		return err
	}
	return nil
}

// Delete удаляет запись. Отсутствие записи — ErrNotFound, вызывающая
// сторона решает, терпимо это или нет.
func (r *AssetRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	asset, ok := r.assets[id]
	if !ok {
		return ErrNotFound
	}

	delete(r.assets, id)
	if err := r.flushLocked(); err != nil {
		r.assets[id] = asset
		return err
	}
	return nil
}

// List возвращает все записи, отсортированные по убыванию createdAt
func (r *AssetRepository) List(ctx context.Context) ([]domain.Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Asset, 0, len(r.assets))
	for _, asset := range r.assets {
		result = append(result, *asset.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

// Count возвращает количество записей в хранилище
func (r *AssetRepository) Count(ctx context.Context) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.assets)
}
