package handler

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"echostudio/internal/domain"
	"echostudio/internal/service"
)

// maxUploadSize ограничивает размер загружаемого изображения
const maxUploadSize = 10 << 20

// Форматы, которые принимает загрузка. Ключ — MIME-тип из содержимого файла.
var allowedImageTypes = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/webp": "webp",
}

type AssetHandler struct {
	assetService *service.AssetService
	editService  *service.EditService
}

func NewAssetHandler(assetService *service.AssetService, editService *service.EditService) *AssetHandler {
	return &AssetHandler{
		assetService: assetService,
		editService:  editService,
	}
}

// Routes монтирует маршруты ассетов на роутер
func (h *AssetHandler) Routes(r chi.Router) {
	r.Get("/", h.ListAssets)
	r.Post("/upload", h.UploadAsset)
	r.Route("/{assetID}", func(r chi.Router) {
		r.Get("/", h.GetAsset)
		r.Patch("/", h.UpdateAsset)
		r.Delete("/", h.DeleteAsset)
		r.Get("/versions", h.GetVersions)
		r.Post("/edit", h.EditAsset)
		r.Post("/save-as-new", h.SaveAsNew)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[AssetHandler] failed to encode response: %v", err)
	}
}

// writeError транслирует ошибку сервиса в HTTP-статус и JSON-тело
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrAssetNotFound):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		log.Printf("[AssetHandler] internal error: %v", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// ListAssets возвращает ассеты, опционально по проекту и типу
func (h *AssetHandler) ListAssets(w http.ResponseWriter, r *http.Request) {
	projectID := r.URL.Query().Get("projectId")
	assetType := r.URL.Query().Get("type")

	assets, err := h.assetService.ListAssets(r.Context(), projectID, assetType)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assets)
}

// UploadAsset принимает multipart-форму с изображением и полями метаданных
func (h *AssetHandler) UploadAsset(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to parse multipart form"})
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, _, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file field is required"})
		return
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read uploaded file"})
		return
	}
	if len(image) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "uploaded file is empty"})
		return
	}

	// Формат берём из содержимого, а не из имени файла
	format, ok := allowedImageTypes[http.DetectContentType(image)]
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported image type, expected png, jpeg or webp"})
		return
	}

	var tags []string
	if raw := r.FormValue("tags"); raw != "" {
		for _, tag := range strings.Split(raw, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
	}

	asset, err := h.assetService.CreateUpload(r.Context(), service.UploadParams{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		Type:        r.FormValue("type"),
		ProjectID:   r.FormValue("projectId"),
		Tags:        tags,
	}, image, format)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, asset)
}

// GetAsset возвращает одну запись ассета
func (h *AssetHandler) GetAsset(w http.ResponseWriter, r *http.Request) {
	asset, err := h.assetService.GetAsset(r.Context(), chi.URLParam(r, "assetID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

// updateRequest — частичное обновление записи плюс опциональная замена
// изображения встроенным base64
type updateRequest struct {
	domain.AssetUpdate
	ImageBase64 string `json:"imageBase64,omitempty"`
}

// UpdateAsset вливает переданные поля в запись. Поля линии версий через
// этот маршрут недоступны.
func (h *AssetHandler) UpdateAsset(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	// Изображение декодируется до записи метаданных: при некорректном
	// payload запись не должна быть частично обновлена
	var image []byte
	if req.ImageBase64 != "" {
		var err error
		image, err = base64.StdEncoding.DecodeString(req.ImageBase64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid imageBase64"})
			return
		}
	}

	id := chi.URLParam(r, "assetID")
	asset, err := h.assetService.UpdateAsset(r.Context(), id, req.AssetUpdate)
	if err != nil {
		writeError(w, err)
		return
	}

	if image != nil {
		asset, err = h.assetService.ReplaceImage(r.Context(), id, image)
		if err != nil {
			writeError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, asset)
}

// DeleteAsset удаляет запись вместе с файлами. Идемпотентен.
func (h *AssetHandler) DeleteAsset(w http.ResponseWriter, r *http.Request) {
	if err := h.assetService.DeleteAsset(r.Context(), chi.URLParam(r, "assetID")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// GetVersions возвращает цепочку версий от корня до запрошенного ассета
func (h *AssetHandler) GetVersions(w http.ResponseWriter, r *http.Request) {
	lineage, err := h.assetService.GetLineage(r.Context(), chi.URLParam(r, "assetID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lineage)
}

type editRequest struct {
	EditPrompt string `json:"editPrompt"`
	Model      string `json:"model,omitempty"`
}

// EditAsset прогоняет изображение через внешний сервис правки и сохраняет
// результат как следующую версию
func (h *AssetHandler) EditAsset(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	asset, err := h.editService.EditAsset(r.Context(), chi.URLParam(r, "assetID"), req.EditPrompt, req.Model)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, asset)
}

// SaveAsNew сохраняет ассет как независимый корень без родословной
func (h *AssetHandler) SaveAsNew(w http.ResponseWriter, r *http.Request) {
	var req domain.SaveAsNewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	asset, err := h.editService.SaveAsNew(r.Context(), chi.URLParam(r, "assetID"), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, asset)
}
