package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/prn-tf/inkwell/internal/auth"
	"github.com/prn-tf/inkwell/internal/domain"
	"github.com/prn-tf/inkwell/internal/media"
)

// Presigner issues presigned uploads.
type Presigner interface {
	PresignUpload(ctx context.Context, kind media.Kind, owner domain.ID, contentType string) (*media.Upload, error)
}

var _ Presigner = (*media.Uploader)(nil)

// MediaHandler serves /media.
type MediaHandler struct {
	presigner Presigner
	logger    zerolog.Logger
}

// NewMediaHandler creates a new MediaHandler. A nil presigner disables uploads.
func NewMediaHandler(presigner Presigner, logger zerolog.Logger) *MediaHandler {
	return &MediaHandler{
		presigner: presigner,
		logger:    logger.With().Str("handler", "media").Logger(),
	}
}

// RegisterRoutes mounts the media routes.
func (h *MediaHandler) RegisterRoutes(r chi.Router) {
	r.With(auth.RequireUser).Post("/uploads", h.handlePresign)
}

func (h *MediaHandler) handlePresign(w http.ResponseWriter, r *http.Request) {
	if h.presigner == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]APIError{"error": {
			Code:    "MEDIA_DISABLED",
			Message: "uploads are not configured",
		}})
		return
	}

	var req uploadRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	user := auth.CurrentUser(r.Context())
	kind := media.Kind(req.Kind)
	if kind == media.KindFeaturedImage && !user.HasRole(domain.RoleAuthor, domain.RoleAdmin) {
		writeError(w, r, h.logger, domain.ErrForbidden)
		return
	}

	upload, err := h.presigner.PresignUpload(r.Context(), kind, user.ID, req.ContentType)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, upload)
}
