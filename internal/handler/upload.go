package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/rigzlion8/deedeeshealthandwellness/internal/media"
)

// multipartOverhead leaves room for boundaries and the folder field on top
// of the file itself.
const multipartOverhead = 1 << 20

type UploadHandler struct {
	service media.Service
}

func NewUploadHandler(service media.Service) *UploadHandler {
	return &UploadHandler{service: service}
}

func (h *UploadHandler) RegisterRoutes(router chi.Router, admin func(http.Handler) http.Handler) {
	router.With(admin).Post("/upload", h.handleUpload)
	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		router.MethodFunc(method, "/upload", methodNotAllowed)
	}
	router.HandleFunc("/upload/*", methodNotAllowed)
}

func (h *UploadHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, media.MaxUploadSize+multipartOverhead)
	if err := r.ParseMultipartForm(media.MaxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondWithError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		respondWithError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	if header.Size > media.MaxUploadSize {
		respondWithError(w, http.StatusRequestEntityTooLarge, "File too large")
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		log.Error().Err(err).Str("file_name", header.Filename).Msg("Failed to read uploaded file")
		respondWithError(w, http.StatusBadRequest, "No file provided")
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}

	result, err := h.service.Upload(r.Context(), media.File{
		Name:     header.Filename,
		MimeType: mimeType,
		Data:     data,
	}, r.FormValue("folder"))
	if err != nil {
		status := mapErrorToStatusCode(err)
		switch {
		case errors.Is(err, media.ErrNoFile):
			respondWithError(w, status, "No file provided")
		case errors.Is(err, media.ErrFileTooLarge):
			respondWithError(w, status, "File too large")
		default:
			log.Error().Err(err).Str("file_name", header.Filename).Msg("Failed to upload image via service")
			respondWithJSON(w, http.StatusInternalServerError, map[string]string{
				"error":   "Image upload failed",
				"details": err.Error(),
			})
		}
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusMethodNotAllowed, map[string]string{
		"error":  "Method not allowed",
		"path":   r.URL.Path,
		"method": r.Method,
	})
}
