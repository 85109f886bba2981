package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/prn-tf/inkwell/internal/domain"
	"github.com/prn-tf/inkwell/internal/query"
	"github.com/prn-tf/inkwell/internal/repository"
)

// CommentService handles comment threads and the posts' comment counters.
type CommentService struct {
	comments repository.CommentRepository
	posts    repository.PostRepository
	logger   zerolog.Logger
}

// NewCommentService creates a new CommentService.
func NewCommentService(comments repository.CommentRepository, posts repository.PostRepository, logger zerolog.Logger) *CommentService {
	return &CommentService{
		comments: comments,
		posts:    posts,
		logger:   logger.With().Str("service", "comment").Logger(),
	}
}

// CreateCommentInput contains the data needed to comment.
type CreateCommentInput struct {
	PostID   domain.ID
	ParentID domain.ID
	Content  string
}

// Create adds a comment or a reply to a published post.
func (s *CommentService) Create(ctx context.Context, author *domain.User, input CreateCommentInput) (*domain.Comment, error) {
	post, err := s.posts.FindOneByID(ctx, input.PostID)
	if err != nil {
		return nil, err
	}
	if !post.IsPublished() {
		return nil, ErrPostNotPublic
	}

	c := domain.NewComment(input.PostID, author.ID, input.Content)
	if !input.ParentID.IsZero() {
		parent, err := s.comments.FindOneByID(ctx, input.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.Post.ID != input.PostID {
			return nil, ErrParentMismatch
		}
		c.Parent = domain.RefTo[domain.CommentSummary](parent.ID)
	}

	created, err := s.comments.Create(ctx, c)
	if err != nil {
		return nil, err
	}
	if _, err := s.posts.IncrementCommentCount(ctx, input.PostID); err != nil {
		s.logger.Warn().Err(err).Str("post_id", input.PostID.String()).Msg("failed to increment comment count")
	}
	return created, nil
}

// Edit replaces the content of the actor's comment.
func (s *CommentService) Edit(ctx context.Context, actor *domain.User, id domain.ID, content string) (*domain.Comment, error) {
	c, err := s.comments.FindOneByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Author.ID != actor.ID {
		return nil, domain.ErrForbidden
	}
	return s.comments.UpdateOneByID(ctx, id, repository.SetFields{"content": content}, query.WithJoin())
}

// Delete soft-deletes a comment. Authors delete their own; admins delete any.
func (s *CommentService) Delete(ctx context.Context, actor *domain.User, id domain.ID) error {
	c, err := s.comments.FindOneByID(ctx, id)
	if err != nil {
		return err
	}
	if c.Author.ID != actor.ID && !actor.HasRole(domain.RoleAdmin) {
		return domain.ErrForbidden
	}

	deleted, err := s.comments.SoftDeleteOneByID(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return domain.NotFound(domain.EntityComment, "no live row with id "+id.String())
	}
	if _, err := s.posts.DecrementCommentCount(ctx, c.Post.ID); err != nil {
		s.logger.Warn().Err(err).Str("post_id", c.Post.ID.String()).Msg("failed to decrement comment count")
	}
	return nil
}

// ListByPost returns a page of top-level comments.
func (s *CommentService) ListByPost(ctx context.Context, post domain.ID, p query.Pagination) (*query.Page[*domain.Comment], error) {
	return s.comments.FindByPost(ctx, post, p)
}

// Replies returns the replies to a comment.
func (s *CommentService) Replies(ctx context.Context, parent domain.ID) ([]*domain.Comment, error) {
	return s.comments.FindReplies(ctx, parent)
}
