package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/moneytrail/apiserver/internal/services"
)

const (
	formFieldImage     = "image"
	maxMultipartMemory = 1 << 20
)

// UploadImage stores a profile image sent as the "image" multipart field.
func (h *AuthHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, services.MaxImageSize+maxMultipartMemory)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusBadRequest, "image must be 5 MB or smaller")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(formFieldImage)
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	defer file.Close()

	url, err := h.images.Upload(r.Context(), file, header.Size)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, UploadResponse{ImageURL: url})
}

type UploadResponse struct {
	ImageURL string `json:"imageUrl"`
}

// UploadsRouter serves stored images under /uploads/*.
func UploadsRouter(r chi.Router, images *services.ImageService) {
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		obj, err := images.Open(r.Context(), chi.URLParam(r, "*"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		defer obj.Close()

		if obj.ContentType != "" {
			w.Header().Set("Content-Type", obj.ContentType)
		}
		if obj.Size > 0 {
			w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
		}
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.WriteHeader(http.StatusOK)
		_, _ = io.Copy(w, obj)
	})
}
