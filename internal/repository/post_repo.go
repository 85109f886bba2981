package repository

import (
	"context"
	"slices"

	"github.com/prn-tf/inkwell/internal/domain"
	"github.com/prn-tf/inkwell/internal/query"
	"github.com/prn-tf/inkwell/internal/store"
)

// postRepository implements PostRepository.
type postRepository struct {
	*Base[domain.Post]
}

// NewPostRepository creates a new PostRepository.
func NewPostRepository(b *Backend) PostRepository {
	base := NewBase[domain.Post](b, Definition{
		Entity: domain.EntityPost,
		DefaultJoin: []query.Populate{
			{Path: "author", Entity: domain.EntityUser, Select: domain.AuthorProjection},
			{Path: "categories", Entity: domain.EntityCategory, Select: domain.CategoryProjection},
		},
		SearchFields: []string{"title", "excerpt", "content"},
		SortFields: []string{
			"title", domain.PostFieldPublishedAt, "createdAt",
			domain.PostFieldViewCount, domain.PostFieldLikeCount,
		},
	})
	base.onUpdate(publishedAtHook)
	return &postRepository{Base: base}
}

// publishedAtHook keeps publishedAt in step with status: a transition to
// PUBLISHED stamps it unless the write supplies one, a transition to DRAFT clears it.
func publishedAtHook(u *store.Update, now string) {
	status, ok := u.Set[domain.PostFieldStatus].(string)
	if !ok {
		return
	}
	switch domain.PostStatus(status) {
	case domain.PostStatusPublished:
		if _, set := u.Set[domain.PostFieldPublishedAt]; !set {
			u.Set[domain.PostFieldPublishedAt] = now
		}
	case domain.PostStatusDraft:
		delete(u.Set, domain.PostFieldPublishedAt)
		if !slices.Contains(u.Unset, domain.PostFieldPublishedAt) {
			u.Unset = append(u.Unset, domain.PostFieldPublishedAt)
		}
	}
}

var (
	newestPublished = query.WithOrder(query.OrderByDesc(domain.PostFieldPublishedAt))
	newestCreated   = query.WithOrder(query.OrderByDesc("createdAt"))
)

// FindBySlug retrieves a post by slug with joins.
func (r *postRepository) FindBySlug(ctx context.Context, slug string) (*domain.Post, error) {
	return r.FindOne(ctx, query.Eq{Field: "slug", Value: slug}, query.WithJoin())
}

// FindPublished returns published posts, newest publication first.
func (r *postRepository) FindPublished(ctx context.Context) ([]*domain.Post, error) {
	filter := query.Eq{Field: domain.PostFieldStatus, Value: string(domain.PostStatusPublished)}
	return r.List(ctx, filter, query.WithJoin(), newestPublished)
}

// FindByAuthor returns the author's posts, newest first.
func (r *postRepository) FindByAuthor(ctx context.Context, author domain.ID, scope ...query.Filter) ([]*domain.Post, error) {
	filter := query.All(append([]query.Filter{query.Eq{Field: "author", Value: string(author)}}, scope...)...)
	return r.List(ctx, filter, query.WithJoin(), newestCreated)
}

// FindByCategory returns posts filed under category.
func (r *postRepository) FindByCategory(ctx context.Context, category domain.ID, scope ...query.Filter) ([]*domain.Post, error) {
	filter := query.All(append([]query.Filter{query.Has{Field: "categories", Value: string(category)}}, scope...)...)
	return r.List(ctx, filter, query.WithJoin(), newestPublished)
}

// FindByTag returns posts carrying tag.
func (r *postRepository) FindByTag(ctx context.Context, tag string, scope ...query.Filter) ([]*domain.Post, error) {
	filter := query.All(append([]query.Filter{query.Has{Field: "tags", Value: tag}}, scope...)...)
	return r.List(ctx, filter, query.WithJoin(), newestPublished)
}

// IncrementViewCount atomically adds one view.
func (r *postRepository) IncrementViewCount(ctx context.Context, id domain.ID) (*domain.Post, error) {
	return r.UpdateOneByID(ctx, id, IncCounters{domain.PostFieldViewCount: 1})
}

// IncrementLikeCount atomically adds one like.
func (r *postRepository) IncrementLikeCount(ctx context.Context, id domain.ID) (*domain.Post, error) {
	return r.UpdateOneByID(ctx, id, IncCounters{domain.PostFieldLikeCount: 1})
}

// DecrementLikeCount atomically removes one like.
func (r *postRepository) DecrementLikeCount(ctx context.Context, id domain.ID) (*domain.Post, error) {
	return r.UpdateOneByID(ctx, id, IncCounters{domain.PostFieldLikeCount: -1})
}

// IncrementCommentCount atomically adds one comment.
func (r *postRepository) IncrementCommentCount(ctx context.Context, id domain.ID) (*domain.Post, error) {
	return r.UpdateOneByID(ctx, id, IncCounters{domain.PostFieldCommentCount: 1})
}

// DecrementCommentCount atomically removes one comment.
func (r *postRepository) DecrementCommentCount(ctx context.Context, id domain.ID) (*domain.Post, error) {
	return r.UpdateOneByID(ctx, id, IncCounters{domain.PostFieldCommentCount: -1})
}

// Publish sets status PUBLISHED and stamps publishedAt.
func (r *postRepository) Publish(ctx context.Context, id domain.ID) (*domain.Post, error) {
	return r.UpdateOneByID(ctx, id, managedSet{
		domain.PostFieldStatus:      string(domain.PostStatusPublished),
		domain.PostFieldPublishedAt: r.now(),
	})
}

// Unpublish sets status DRAFT and clears publishedAt.
func (r *postRepository) Unpublish(ctx context.Context, id domain.ID) (*domain.Post, error) {
	return r.UpdateOneByID(ctx, id, managedSet{
		domain.PostFieldStatus:      string(domain.PostStatusDraft),
		domain.PostFieldPublishedAt: nil,
	})
}

// Archive sets status ARCHIVED. publishedAt is kept.
func (r *postRepository) Archive(ctx context.Context, id domain.ID) (*domain.Post, error) {
	return r.UpdateOneByID(ctx, id, SetFields{domain.PostFieldStatus: string(domain.PostStatusArchived)})
}

var _ PostRepository = (*postRepository)(nil)
