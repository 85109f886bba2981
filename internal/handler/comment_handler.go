package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/prn-tf/inkwell/internal/auth"
	"github.com/prn-tf/inkwell/internal/service"
)

// CommentHandler serves /comments. Comments are created under /posts/{id}/comments.
type CommentHandler struct {
	comments *service.CommentService
	logger   zerolog.Logger
}

// NewCommentHandler creates a new CommentHandler.
func NewCommentHandler(comments *service.CommentService, logger zerolog.Logger) *CommentHandler {
	return &CommentHandler{
		comments: comments,
		logger:   logger.With().Str("handler", "comment").Logger(),
	}
}

// RegisterRoutes mounts the comment routes.
func (h *CommentHandler) RegisterRoutes(r chi.Router) {
	r.Get("/{id}/replies", h.handleReplies)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser)
		r.Patch("/{id}", h.handleEdit)
		r.Delete("/{id}", h.handleDelete)
	})
}

func (h *CommentHandler) handleReplies(w http.ResponseWriter, r *http.Request) {
	replies, err := h.comments.Replies(r.Context(), pathID(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, replies)
}

func (h *CommentHandler) handleEdit(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if !req.Parent.IsZero() {
		writeError(w, r, h.logger, badRequest("parent", "cannot be changed"))
		return
	}
	comment, err := h.comments.Edit(r.Context(), auth.CurrentUser(r.Context()), pathID(r, "id"), req.Content)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, comment)
}

func (h *CommentHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.comments.Delete(r.Context(), auth.CurrentUser(r.Context()), pathID(r, "id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
