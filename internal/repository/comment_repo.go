package repository

import (
	"context"

	"github.com/prn-tf/inkwell/internal/domain"
	"github.com/prn-tf/inkwell/internal/query"
)

// commentRepository implements CommentRepository.
type commentRepository struct {
	*Base[domain.Comment]
}

// NewCommentRepository creates a new CommentRepository.
func NewCommentRepository(b *Backend) CommentRepository {
	return &commentRepository{
		Base: NewBase[domain.Comment](b, Definition{
			Entity: domain.EntityComment,
			DefaultJoin: []query.Populate{
				{Path: "author", Entity: domain.EntityUser, Select: domain.AuthorProjection},
			},
			SearchFields: []string{"content"},
			SortFields:   []string{"createdAt", "updatedAt"},
		}),
	}
}

var oldestFirst = []query.SortKey{query.OrderBy("createdAt")}

// FindByPost returns the top-level comments of a post, oldest first.
func (r *commentRepository) FindByPost(ctx context.Context, post domain.ID, p query.Pagination) (*query.Page[*domain.Comment], error) {
	filter := query.All(
		query.Eq{Field: "post", Value: string(post)},
		query.Exists{Field: "parent", Present: false},
	)
	if len(p.Sort) == 0 {
		p.Sort = oldestFirst
	}
	return r.ListPaginated(ctx, filter, p, query.WithJoin())
}

// FindReplies returns the replies to a comment, oldest first.
func (r *commentRepository) FindReplies(ctx context.Context, parent domain.ID) ([]*domain.Comment, error) {
	return r.List(ctx, query.Eq{Field: "parent", Value: string(parent)},
		query.WithJoin(), query.WithOrder(oldestFirst...))
}

// CountByPost returns the number of live comments on a post, replies included.
func (r *commentRepository) CountByPost(ctx context.Context, post domain.ID) (int64, error) {
	return r.Count(ctx, query.Eq{Field: "post", Value: string(post)})
}

var _ CommentRepository = (*commentRepository)(nil)
