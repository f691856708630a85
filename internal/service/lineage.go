package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"echostudio/internal/domain"
	"echostudio/internal/repository"
)

// Жёсткая граница длины цепочки: ничто не мешает испорченной ссылке на
// родителя образовать цикл, поэтому обход всегда ограничен
const maxLineageDepth = 100

// GetLineage восстанавливает цепочку версий от корня (v1) до запрошенного
// ассета, следуя по parentAssetId назад. Отсутствующий промежуточный
// родитель не роняет запрос: возвращается усечённая цепочка от самого
// старого достижимого предка. Превышение границы длины — тоже усечение,
// с отдельным сигналом в логе.
func (s *AssetService) GetLineage(ctx context.Context, id string) (*domain.AssetLineage, error) {
	asset, err := s.GetAsset(ctx, id)
	if err != nil {
		return nil, err
	}

	chain := []domain.Asset{*asset}
	current := asset

	for current.ParentAssetID != nil {
		if len(chain) >= maxLineageDepth {
			log.Printf("[Lineage] цепочка для %s превысила %d записей — вероятно, цикл в ссылках на родителя; обход остановлен", id, maxLineageDepth)
			break
		}

		parent, err := s.repo.Get(ctx, *current.ParentAssetID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				log.Printf("[Lineage] родитель %s для %s не найден — возвращаем усечённую цепочку из %d версий", *current.ParentAssetID, current.ID, len(chain))
				break
			}
			return nil, fmt.Errorf("%w: %v", ErrStorage, err)
		}

		chain = append([]domain.Asset{*parent}, chain...)
		current = parent
	}

	return &domain.AssetLineage{
		AssetID:        id,
		CurrentVersion: asset.Version,
		TotalVersions:  len(chain),
		Lineage:        chain,
	}, nil
}
