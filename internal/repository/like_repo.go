package repository

import (
	"context"

	"github.com/prn-tf/inkwell/internal/domain"
	"github.com/prn-tf/inkwell/internal/query"
)

// likeRepository implements LikeRepository.
type likeRepository struct {
	*Base[domain.Like]
}

// NewLikeRepository creates a new LikeRepository.
func NewLikeRepository(b *Backend) LikeRepository {
	return &likeRepository{
		Base: NewBase[domain.Like](b, Definition{
			Entity: domain.EntityLike,
			DefaultJoin: []query.Populate{
				{Path: "user", Entity: domain.EntityUser, Select: domain.AuthorProjection},
			},
			SortFields: []string{"createdAt"},
		}),
	}
}

// FindByPostAndUser retrieves the like of user on post.
func (r *likeRepository) FindByPostAndUser(ctx context.Context, post, user domain.ID, opts ...query.Option) (*domain.Like, error) {
	filter := query.All(
		query.Eq{Field: "post", Value: string(post)},
		query.Eq{Field: "user", Value: string(user)},
	)
	return r.FindOne(ctx, filter, opts...)
}

// FindByPost returns the likes of a post with the liking users expanded.
func (r *likeRepository) FindByPost(ctx context.Context, post domain.ID, p query.Pagination) (*query.Page[*domain.Like], error) {
	return r.ListPaginated(ctx, query.Eq{Field: "post", Value: string(post)}, p, query.WithJoin())
}

// CountByPost returns the number of live likes on a post.
func (r *likeRepository) CountByPost(ctx context.Context, post domain.ID) (int64, error) {
	return r.Count(ctx, query.Eq{Field: "post", Value: string(post)})
}

// FindByUser returns the likes a user gave, newest first, with the posts expanded.
func (r *likeRepository) FindByUser(ctx context.Context, user domain.ID, p query.Pagination) (*query.Page[*domain.Like], error) {
	return r.ListPaginated(ctx, query.Eq{Field: "user", Value: string(user)}, p,
		query.WithPopulate(query.Populate{Path: "post", Entity: domain.EntityPost}))
}

var _ LikeRepository = (*likeRepository)(nil)
