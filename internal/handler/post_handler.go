package handler

import (
	"context"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/prn-tf/inkwell/internal/auth"
	"github.com/prn-tf/inkwell/internal/domain"
	"github.com/prn-tf/inkwell/internal/service"
)

// PostHandler serves /posts and the comments and likes nested under a post.
type PostHandler struct {
	posts    *service.PostService
	comments *service.CommentService
	likes    *service.LikeService
	logger   zerolog.Logger
}

// NewPostHandler creates a new PostHandler.
func NewPostHandler(posts *service.PostService, comments *service.CommentService, likes *service.LikeService, logger zerolog.Logger) *PostHandler {
	return &PostHandler{
		posts:    posts,
		comments: comments,
		likes:    likes,
		logger:   logger.With().Str("handler", "post").Logger(),
	}
}

// RegisterRoutes mounts the post routes.
func (h *PostHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Get("/published", h.handleListPublished)
	r.Get("/slug/{slug}", h.handleView)
	r.Get("/tag/{tag}", h.handleByTag)
	r.Get("/author/{id}", h.handleByAuthor)
	r.Get("/{id}", h.handleGet)
	r.Get("/{id}/comments", h.handleListComments)
	r.Get("/{id}/likes", h.handleListLikes)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(domain.RoleAuthor, domain.RoleAdmin))
		r.Post("/", h.handleCreate)
		r.Patch("/{id}", h.handleUpdate)
		r.Post("/{id}/publish", h.handlePublish)
		r.Post("/{id}/unpublish", h.handleUnpublish)
		r.Post("/{id}/archive", h.handleArchive)
		r.Delete("/{id}", h.handleDelete)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser)
		r.Post("/{id}/comments", h.handleCreateComment)
		r.Post("/{id}/like", h.handleToggleLike)
		r.Delete("/{id}/like", h.handleUnlike)
	})
}

// =============================================================================
// Reads
// =============================================================================

func (h *PostHandler) handleList(w http.ResponseWriter, r *http.Request) {
	p, err := parsePagination(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	q := r.URL.Query()
	f := service.PostFilter{
		Status:   domain.PostStatus(q.Get("status")),
		Author:   domain.ID(q.Get("author")),
		Category: domain.ID(q.Get("category")),
		Tag:      q.Get("tag"),
	}
	page, err := h.posts.List(r.Context(), auth.CurrentUser(r.Context()), f, p)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *PostHandler) handleListPublished(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.ListPublished(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (h *PostHandler) handleByTag(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.ByTag(r.Context(), auth.CurrentUser(r.Context()), chi.URLParam(r, "tag"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (h *PostHandler) handleByAuthor(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.ByAuthor(r.Context(), auth.CurrentUser(r.Context()), pathID(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (h *PostHandler) handleView(w http.ResponseWriter, r *http.Request) {
	viewer := auth.CurrentUser(r.Context())
	post, err := h.posts.View(r.Context(), chi.URLParam(r, "slug"), viewer, viewerKey(r, viewer))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// viewerKey identifies a reader for view de-duplication: the user id when signed
// in, otherwise the client address.
func viewerKey(r *http.Request, viewer *domain.User) string {
	if viewer != nil {
		return "u:" + viewer.ID.String()
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if host == "" {
		return ""
	}
	return "ip:" + host
}

func (h *PostHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	post, err := h.posts.Get(r.Context(), pathID(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if !post.IsPublished() {
		if u := auth.CurrentUser(r.Context()); u == nil || (!post.IsOwnedBy(u.ID) && !u.HasRole(domain.RoleAdmin)) {
			writeError(w, r, h.logger, service.ErrPostNotPublic)
			return
		}
	}
	writeJSON(w, http.StatusOK, post)
}

// =============================================================================
// Writes
// =============================================================================

func (h *PostHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createPostRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	post, err := h.posts.Create(r.Context(), auth.CurrentUser(r.Context()), service.CreatePostInput{
		Title:         req.Title,
		Slug:          req.Slug,
		Excerpt:       req.Excerpt,
		Content:       req.Content,
		FeaturedImage: req.FeaturedImage,
		Status:        req.Status,
		Categories:    req.Categories,
		Tags:          req.Tags,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

func (h *PostHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updatePostRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	post, err := h.posts.Update(r.Context(), auth.CurrentUser(r.Context()), pathID(r, "id"), service.UpdatePostInput{
		Title:         req.Title,
		Slug:          req.Slug,
		Excerpt:       req.Excerpt,
		Content:       req.Content,
		FeaturedImage: req.FeaturedImage,
		Status:        req.Status,
		Categories:    req.Categories,
		Tags:          req.Tags,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (h *PostHandler) handlePublish(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.posts.Publish)
}

func (h *PostHandler) handleUnpublish(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.posts.Unpublish)
}

func (h *PostHandler) handleArchive(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.posts.Archive)
}

type transitionFunc func(ctx context.Context, actor *domain.User, id domain.ID) (*domain.Post, error)

func (h *PostHandler) transition(w http.ResponseWriter, r *http.Request, fn transitionFunc) {
	post, err := fn(r.Context(), auth.CurrentUser(r.Context()), pathID(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (h *PostHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.posts.Delete(r.Context(), auth.CurrentUser(r.Context()), pathID(r, "id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// Comments and likes
// =============================================================================

func (h *PostHandler) handleListComments(w http.ResponseWriter, r *http.Request) {
	p, err := parsePagination(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	page, err := h.comments.ListByPost(r.Context(), pathID(r, "id"), p)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *PostHandler) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	comment, err := h.comments.Create(r.Context(), auth.CurrentUser(r.Context()), service.CreateCommentInput{
		PostID:   pathID(r, "id"),
		ParentID: req.Parent,
		Content:  req.Content,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

func (h *PostHandler) handleToggleLike(w http.ResponseWriter, r *http.Request) {
	state, err := h.likes.Toggle(r.Context(), pathID(r, "id"), auth.CurrentUser(r.Context()).ID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *PostHandler) handleUnlike(w http.ResponseWriter, r *http.Request) {
	state, err := h.likes.Unlike(r.Context(), pathID(r, "id"), auth.CurrentUser(r.Context()).ID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *PostHandler) handleListLikes(w http.ResponseWriter, r *http.Request) {
	p, err := parsePagination(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	page, err := h.likes.ByPost(r.Context(), pathID(r, "id"), p)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}
