package api

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	apperrors "eventconnect/pkg/errors"
	"eventconnect/util"
)

const maxUploadBytes = 10 << 20

// Extensions of the accepted image types, keyed by sniffed content type.
var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
}

// UploadResponse is the public path of a stored upload.
type UploadResponse struct {
	URL string `json:"url"`
}

// ImageUploadHandler stores an uploaded image under the uploads directory.
// POST /api/uploads (multipart field "image")
func ImageUploadHandler(w http.ResponseWriter, r *http.Request) {
	userID := currentUserID(r)
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			util.RespondWithError(w, r, apperrors.NewValidationError("image must be at most 10MB"))
			return
		}
		util.RespondWithError(w, r, apperrors.NewValidationError("invalid multipart form"))
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		util.RespondWithError(w, r, apperrors.NewFieldValidationError("image is required", map[string]string{"image": "is required"}))
		return
	}
	defer file.Close()
	if header.Size > maxUploadBytes {
		util.RespondWithError(w, r, apperrors.NewValidationError("image must be at most 10MB"))
		return
	}

	// Trust the bytes, not the client's Content-Type.
	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		util.RespondWithError(w, r, apperrors.NewValidationError("failed to read image"))
		return
	}
	ext, ok := imageExtensions[http.DetectContentType(head[:n])]
	if !ok {
		util.RespondWithError(w, r, apperrors.NewValidationError("only JPEG, PNG and GIF images are allowed"))
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		util.RespondWithError(w, r, apperrors.NewInternalError("failed to rewind upload", err))
		return
	}

	if err := os.MkdirAll(uploadsDir, 0o755); err != nil {
		util.RespondWithError(w, r, apperrors.NewInternalError("failed to create uploads directory", err))
		return
	}
	filename := uuid.NewString() + ext
	if err := saveUpload(filepath.Join(uploadsDir, filename), file); err != nil {
		util.RespondWithError(w, r, apperrors.NewInternalError("failed to save upload", err))
		return
	}

	log.Info().Int64("user_id", userID).Str("file", filename).Msg("image uploaded")
	util.RespondWithJSON(w, http.StatusCreated, UploadResponse{URL: "/uploads/" + filename})
}

// saveUpload writes src to path. A partially written file is removed.
func saveUpload(path string, src io.Reader) error {
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, src)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		if rmErr := os.Remove(path); rmErr != nil {
			log.Warn().Err(rmErr).Str("path", path).Msg("failed to remove partial upload")
		}
		return err
	}
	return nil
}
