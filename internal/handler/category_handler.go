package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/prn-tf/inkwell/internal/auth"
	"github.com/prn-tf/inkwell/internal/domain"
	"github.com/prn-tf/inkwell/internal/query"
	"github.com/prn-tf/inkwell/internal/service"
)

// CategoryHandler serves /categories. Reads are public; writes need ADMIN.
type CategoryHandler struct {
	categories *service.CategoryService
	posts      *service.PostService
	logger     zerolog.Logger
}

// NewCategoryHandler creates a new CategoryHandler.
func NewCategoryHandler(categories *service.CategoryService, posts *service.PostService, logger zerolog.Logger) *CategoryHandler {
	return &CategoryHandler{
		categories: categories,
		posts:      posts,
		logger:     logger.With().Str("handler", "category").Logger(),
	}
}

// RegisterRoutes mounts the category routes.
func (h *CategoryHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Get("/root", h.handleRoots)
	r.Get("/by-slug/{slug}", h.handleGetBySlug)
	r.Get("/{id}", h.handleGet)
	r.Get("/{id}/children", h.handleChildren)
	r.Get("/{id}/posts", h.handlePosts)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(domain.RoleAdmin))
		r.Get("/admin/all", h.handleListAll)
		r.Post("/", h.handleCreate)
		r.Patch("/{id}", h.handleUpdate)
		r.Delete("/{id}", h.handleRemove)
	})
}

func (h *CategoryHandler) handleList(w http.ResponseWriter, r *http.Request) {
	var pp *query.Pagination
	if wantsPagination(r) {
		p, err := parsePagination(r)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		pp = &p
	}
	listing, err := h.categories.List(r.Context(), pp)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse(listing))
}

func (h *CategoryHandler) handleListAll(w http.ResponseWriter, r *http.Request) {
	p, err := parsePagination(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	page, err := h.categories.ListAll(r.Context(), p)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *CategoryHandler) handleRoots(w http.ResponseWriter, r *http.Request) {
	roots, err := h.categories.Roots(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, roots)
}

func (h *CategoryHandler) handleGetBySlug(w http.ResponseWriter, r *http.Request) {
	c, err := h.categories.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CategoryHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	c, err := h.categories.Get(r.Context(), pathID(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CategoryHandler) handleChildren(w http.ResponseWriter, r *http.Request) {
	children, err := h.categories.Children(r.Context(), pathID(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, children)
}

func (h *CategoryHandler) handlePosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.ByCategory(r.Context(), auth.CurrentUser(r.Context()), pathID(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (h *CategoryHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	c, err := h.categories.Create(r.Context(), service.CreateCategoryInput{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		Color:       req.Color,
		ParentID:    req.Parent,
		SortOrder:   req.SortOrder,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *CategoryHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateCategoryRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	c, err := h.categories.Update(r.Context(), pathID(r, "id"), service.UpdateCategoryInput{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		Color:       req.Color,
		ParentID:    req.Parent,
		SortOrder:   req.SortOrder,
		IsActive:    req.IsActive,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CategoryHandler) handleRemove(w http.ResponseWriter, r *http.Request) {
	if err := h.categories.Remove(r.Context(), pathID(r, "id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
