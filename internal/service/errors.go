package service

import "errors"

// Ошибки уровня сервисов. Хендлеры транслируют их в HTTP-статусы.
var (
	ErrAssetNotFound = errors.New("asset not found")
	ErrValidation    = errors.New("validation failed")
	ErrProvider      = errors.New("image edit provider failed")
	ErrStorage       = errors.New("storage operation failed")
)
