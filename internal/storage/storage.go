package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrObjectNotFound возвращается, когда объекта с таким ключом нет
var ErrObjectNotFound = errors.New("object not found")

// Storage определяет интерфейс бинарного хранилища ассетов. Реализации:
// локальная файловая система (по умолчанию) и S3-совместимое хранилище.
type Storage interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete идемпотентен: отсутствие объекта не считается ошибкой
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// Keys возвращает ключи всех хранимых объектов
	Keys(ctx context.Context) ([]string, error)
}

// ImageKey — ключ основного изображения ассета: {id}.{format}
func ImageKey(assetID, format string) string {
	return fmt.Sprintf("%s.%s", assetID, format)
}

// ThumbKey — ключ миниатюры: {id}.thumb.{format}
func ThumbKey(assetID, format string) string {
	return fmt.Sprintf("%s.thumb.%s", assetID, format)
}
