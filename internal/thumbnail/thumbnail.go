package thumbnail

import (
	"fmt"

	"github.com/h2non/bimg"
)

const (
	maxThumbSize = 256 // максимальный размер миниатюры в пикселях
	jpegQuality  = 85  // качество сжатия
)

// Generator определяет интерфейс генерации миниатюр и измерения изображений
type Generator interface {
	Thumbnail(data []byte, format string) ([]byte, error)
	Dimensions(data []byte) (width, height int, err error)
}

// BimgGenerator — реализация поверх libvips (bimg)
type BimgGenerator struct {
	maxSize int
	quality int
}

func NewGenerator() *BimgGenerator {
	return &BimgGenerator{
		maxSize: maxThumbSize,
		quality: jpegQuality,
	}
}

// Thumbnail уменьшает изображение до миниатюры с сохранением пропорций,
// оставляя его в том же формате, что и оригинал
func (g *BimgGenerator) Thumbnail(data []byte, format string) ([]byte, error) {
	image := bimg.NewImage(data)

	size, err := image.Size()
	if err != nil {
		return nil, fmt.Errorf("failed to get image size: %w", err)
	}

	width, height := calculateNewDimensions(size.Width, size.Height, g.maxSize)

	processed, err := image.Process(bimg.Options{
		Width:   width,
		Height:  height,
		Quality: g.quality,
		Type:    imageTypeFor(format),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to process image: %w", err)
	}

	return processed, nil
}

// Dimensions возвращает ширину и высоту изображения в пикселях
func (g *BimgGenerator) Dimensions(data []byte) (int, int, error) {
	size, err := bimg.NewImage(data).Size()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get image size: %w", err)
	}
	return size.Width, size.Height, nil
}

// calculateNewDimensions вычисляет новые размеры с сохранением пропорций
func calculateNewDimensions(width, height, maxSize int) (newWidth, newHeight int) {
	if width <= maxSize && height <= maxSize {
		return width, height
	}
	if width > height {
		newWidth = maxSize
		newHeight = (height * maxSize) / width
	} else {
		newHeight = maxSize
		newWidth = (width * maxSize) / height
	}
	return
}

func imageTypeFor(format string) bimg.ImageType {
	switch format {
	case "png":
		return bimg.PNG
	case "webp":
		return bimg.WEBP
	default:
		return bimg.JPEG
	}
}
