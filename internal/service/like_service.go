package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/inkwell/internal/domain"
	"github.com/prn-tf/inkwell/internal/lock"
	"github.com/prn-tf/inkwell/internal/metrics"
	"github.com/prn-tf/inkwell/internal/query"
	"github.com/prn-tf/inkwell/internal/repository"
)

// LikeService handles likes. The like row and the post's likeCount change under
// one lock per (post, user).
type LikeService struct {
	likes   repository.LikeRepository
	posts   repository.PostRepository
	locker  lock.Locker
	lockTTL time.Duration
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewLikeService creates a new LikeService. m may be nil.
func NewLikeService(
	likes repository.LikeRepository,
	posts repository.PostRepository,
	locker lock.Locker,
	lockTTL time.Duration,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *LikeService {
	return &LikeService{
		likes:   likes,
		posts:   posts,
		locker:  locker,
		lockTTL: lockTTL,
		metrics: m,
		logger:  logger.With().Str("service", "like").Logger(),
	}
}

// LikeState is the outcome of a like operation.
type LikeState struct {
	Liked     bool  `json:"liked"`
	LikeCount int64 `json:"likeCount"`
}

// Like records that user likes post. Liking again after an unlike restores the
// withdrawn row. Returns domain.ErrAlreadyLiked when the like is live.
func (s *LikeService) Like(ctx context.Context, post, user domain.ID) (*LikeState, error) {
	var state *LikeState
	err := lock.WithLock(ctx, s.locker, lock.Keys.Like(post, user), s.lockTTL, func(ctx context.Context) error {
		var err error
		state, err = s.like(ctx, post, user)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveLike(true)
	return state, nil
}

// Unlike withdraws a like. Returns domain.ErrNotLiked when there is none.
func (s *LikeService) Unlike(ctx context.Context, post, user domain.ID) (*LikeState, error) {
	var state *LikeState
	err := lock.WithLock(ctx, s.locker, lock.Keys.Like(post, user), s.lockTTL, func(ctx context.Context) error {
		var err error
		state, err = s.unlike(ctx, post, user)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveLike(false)
	return state, nil
}

// Toggle flips the like of user on post.
func (s *LikeService) Toggle(ctx context.Context, post, user domain.ID) (*LikeState, error) {
	var state *LikeState
	err := lock.WithLock(ctx, s.locker, lock.Keys.Like(post, user), s.lockTTL, func(ctx context.Context) error {
		var err error
		state, err = s.like(ctx, post, user)
		if errors.Is(err, domain.ErrAlreadyLiked) {
			state, err = s.unlike(ctx, post, user)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveLike(state.Liked)
	return state, nil
}

// like runs with the pair lock held.
func (s *LikeService) like(ctx context.Context, post, user domain.ID) (*LikeState, error) {
	existing, err := s.likes.FindByPostAndUser(ctx, post, user, query.WithDeleted())
	switch {
	case err == nil && !existing.IsDeleted():
		return nil, domain.ErrAlreadyLiked
	case err == nil:
		if _, err := s.likes.RestoreOneByID(ctx, existing.ID); err != nil {
			return nil, err
		}
	case errors.Is(err, domain.ErrNotFound):
		if _, err := s.likes.Create(ctx, domain.NewLike(post, user)); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	p, err := s.posts.IncrementLikeCount(ctx, post)
	if err != nil {
		return nil, err
	}
	s.logger.Debug().Str("post_id", post.String()).Str("user_id", user.String()).Msg("post liked")
	return &LikeState{Liked: true, LikeCount: p.LikeCount}, nil
}

// unlike runs with the pair lock held.
func (s *LikeService) unlike(ctx context.Context, post, user domain.ID) (*LikeState, error) {
	existing, err := s.likes.FindByPostAndUser(ctx, post, user)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotLiked
		}
		return nil, err
	}
	if _, err := s.likes.SoftDeleteOneByID(ctx, existing.ID); err != nil {
		return nil, err
	}

	p, err := s.posts.DecrementLikeCount(ctx, post)
	if err != nil {
		return nil, err
	}
	s.logger.Debug().Str("post_id", post.String()).Str("user_id", user.String()).Msg("post unliked")
	return &LikeState{Liked: false, LikeCount: p.LikeCount}, nil
}

// ByPost returns a page of likes on a post with the users expanded.
func (s *LikeService) ByPost(ctx context.Context, post domain.ID, p query.Pagination) (*query.Page[*domain.Like], error) {
	return s.likes.FindByPost(ctx, post, p)
}

// ByUser returns a page of likes a user gave with the posts expanded.
func (s *LikeService) ByUser(ctx context.Context, user domain.ID, p query.Pagination) (*query.Page[*domain.Like], error) {
	return s.likes.FindByUser(ctx, user, p)
}
