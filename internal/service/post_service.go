package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/inkwell/internal/domain"
	"github.com/prn-tf/inkwell/internal/query"
	"github.com/prn-tf/inkwell/internal/repository"
)

// DefaultViewWindow is how long one viewer counts as a single view of a post.
const DefaultViewWindow = 30 * time.Minute

// PostService handles posts and their category counters.
type PostService struct {
	posts      repository.PostRepository
	categories repository.CategoryRepository
	views      repository.Cache
	viewWindow time.Duration
	logger     zerolog.Logger
}

// NewPostService creates a new PostService. views may be nil, in which case every
// read of a published post counts.
func NewPostService(
	posts repository.PostRepository,
	categories repository.CategoryRepository,
	views repository.Cache,
	logger zerolog.Logger,
) *PostService {
	return &PostService{
		posts:      posts,
		categories: categories,
		views:      views,
		viewWindow: DefaultViewWindow,
		logger:     logger.With().Str("service", "post").Logger(),
	}
}

// CreatePostInput contains the data needed to create a post.
type CreatePostInput struct {
	Title         string
	Slug          string
	Excerpt       string
	Content       string
	FeaturedImage string
	Status        domain.PostStatus
	Categories    []domain.ID
	Tags          []string
}

// Create creates a post owned by author and counts it in its categories.
func (s *PostService) Create(ctx context.Context, author *domain.User, input CreatePostInput) (*domain.Post, error) {
	slug := input.Slug
	if slug == "" {
		slug = Slugify(input.Title)
	}
	p := domain.NewPost(author.ID, input.Title, slug, input.Content)
	p.Excerpt = input.Excerpt
	p.FeaturedImage = input.FeaturedImage
	p.Tags = input.Tags
	p.Categories = domain.RefsTo[domain.CategorySummary](input.Categories...)
	if input.Status != "" {
		if !input.Status.IsValid() {
			return nil, ErrInvalidStatus
		}
		p.Status = input.Status
	}

	created, err := s.posts.Create(ctx, p)
	if err != nil {
		return nil, err
	}
	s.adjustCategories(ctx, input.Categories, nil)

	s.logger.Info().
		Str("post_id", created.ID.String()).
		Str("author_id", author.ID.String()).
		Str("status", string(created.Status)).
		Msg("post created")
	return created, nil
}

// UpdatePostInput holds optional changes. Nil fields are left alone.
type UpdatePostInput struct {
	Title         *string
	Slug          *string
	Excerpt       *string
	Content       *string
	FeaturedImage *string
	Status        *domain.PostStatus
	Categories    *[]domain.ID
	Tags          *[]string
}

// Update applies changes to a post the actor may edit.
func (s *PostService) Update(ctx context.Context, actor *domain.User, id domain.ID, input UpdatePostInput) (*domain.Post, error) {
	current, err := s.editable(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	set := repository.SetFields{}
	putString(set, "title", input.Title)
	putString(set, "slug", input.Slug)
	putString(set, "excerpt", input.Excerpt)
	putString(set, "content", input.Content)
	putString(set, "featuredImage", input.FeaturedImage)
	if input.Status != nil {
		if !input.Status.IsValid() {
			return nil, ErrInvalidStatus
		}
		set[domain.PostFieldStatus] = string(*input.Status)
	}
	if input.Tags != nil {
		set["tags"] = *input.Tags
	}
	if input.Categories != nil {
		set["categories"] = *input.Categories
	}
	if len(set) == 0 {
		return current, nil
	}

	updated, err := s.posts.UpdateOneByID(ctx, id, set)
	if err != nil {
		return nil, err
	}
	if input.Categories != nil {
		s.adjustCategories(ctx, *input.Categories, domain.RefIDs(current.Categories))
	}
	return updated, nil
}

// Publish makes a post public.
func (s *PostService) Publish(ctx context.Context, actor *domain.User, id domain.ID) (*domain.Post, error) {
	if _, err := s.editable(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.posts.Publish(ctx, id)
}

// Unpublish returns a post to draft.
func (s *PostService) Unpublish(ctx context.Context, actor *domain.User, id domain.ID) (*domain.Post, error) {
	if _, err := s.editable(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.posts.Unpublish(ctx, id)
}

// Archive archives a post.
func (s *PostService) Archive(ctx context.Context, actor *domain.User, id domain.ID) (*domain.Post, error) {
	if _, err := s.editable(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.posts.Archive(ctx, id)
}

// Delete soft-deletes a post and uncounts it from its categories.
func (s *PostService) Delete(ctx context.Context, actor *domain.User, id domain.ID) error {
	current, err := s.editable(ctx, actor, id)
	if err != nil {
		return err
	}
	deleted, err := s.posts.SoftDeleteOneByID(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return domain.NotFound(domain.EntityPost, "no live row with id "+id.String())
	}
	s.adjustCategories(ctx, nil, domain.RefIDs(current.Categories))

	s.logger.Info().Str("post_id", id.String()).Str("actor_id", actor.ID.String()).Msg("post deleted")
	return nil
}

// Restore brings back a soft-deleted post and counts it in its categories again.
// It reports false when there was no deleted row to restore.
func (s *PostService) Restore(ctx context.Context, id domain.ID) (bool, error) {
	restored, err := s.posts.RestoreOneByID(ctx, id)
	if err != nil || !restored {
		return restored, err
	}
	p, err := s.posts.FindOneByID(ctx, id)
	if err != nil {
		return true, err
	}
	s.adjustCategories(ctx, domain.RefIDs(p.Categories), nil)

	s.logger.Info().Str("post_id", id.String()).Msg("post restored")
	return true, nil
}

// Purge removes a post permanently. A post that was still live is uncounted
// from its categories; a soft-deleted one already was.
func (s *PostService) Purge(ctx context.Context, id domain.ID) (bool, error) {
	p, err := s.posts.FindOneByID(ctx, id, query.WithDeleted())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	purged, err := s.posts.DeleteOneByID(ctx, id)
	if err != nil || !purged {
		return purged, err
	}
	if !p.IsDeleted() {
		s.adjustCategories(ctx, nil, domain.RefIDs(p.Categories))
	}

	s.logger.Info().Str("post_id", id.String()).Msg("post purged")
	return true, nil
}

// Get retrieves a post with author and categories expanded.
func (s *PostService) Get(ctx context.Context, id domain.ID) (*domain.Post, error) {
	return s.posts.FindOneByID(ctx, id, query.WithJoin())
}

// View reads a published post by slug and counts the view once per viewer and window.
// Drafts are visible only to their author and admins.
func (s *PostService) View(ctx context.Context, slug string, viewer *domain.User, viewerKey string) (*domain.Post, error) {
	p, err := s.posts.FindBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !p.IsPublished() {
		if viewer != nil && canEdit(viewer, p) {
			return p, nil
		}
		return nil, ErrPostNotPublic
	}

	count, err := s.countView(ctx, p.ID, viewerKey)
	if err != nil {
		// the read succeeded; a lost view is not worth failing it
		s.logger.Warn().Err(err).Str("post_id", p.ID.String()).Msg("failed to count view")
		return p, nil
	}
	if count != nil {
		p.ViewCount = count.ViewCount
	}
	return p, nil
}

func (s *PostService) countView(ctx context.Context, id domain.ID, viewerKey string) (*domain.Post, error) {
	if s.views != nil && viewerKey != "" {
		first, err := s.views.SetNX(ctx, repository.CacheKey{}.PostView(id, viewerKey), []byte{1}, s.viewWindow)
		if err != nil {
			return nil, err
		}
		if !first {
			return nil, nil
		}
	}
	return s.posts.IncrementViewCount(ctx, id)
}

// PostFilter narrows a post listing.
type PostFilter struct {
	Status   domain.PostStatus
	Author   domain.ID
	Category domain.ID
	Tag      string
}

func (f PostFilter) filter() query.Filter {
	var parts []query.Filter
	if f.Status != "" {
		parts = append(parts, query.Eq{Field: domain.PostFieldStatus, Value: string(f.Status)})
	}
	if f.Author != "" {
		parts = append(parts, query.Eq{Field: "author", Value: string(f.Author)})
	}
	if f.Category != "" {
		parts = append(parts, query.Has{Field: "categories", Value: string(f.Category)})
	}
	if f.Tag != "" {
		parts = append(parts, query.Has{Field: "tags", Value: f.Tag})
	}
	if len(parts) == 0 {
		return nil
	}
	return query.All(parts...)
}

// List returns a page of posts matching f that viewer may read, with author and
// categories expanded.
func (s *PostService) List(ctx context.Context, viewer *domain.User, f PostFilter, p query.Pagination) (*query.Page[*domain.Post], error) {
	opts := []query.Option{query.WithJoin()}
	if f.Status == domain.PostStatusPublished {
		opts = append(opts, query.WithOrder(query.OrderByDesc(domain.PostFieldPublishedAt)))
	}
	return s.posts.ListPaginated(ctx, query.All(f.filter(), Visibility(viewer)), p, opts...)
}

// ListPublished returns published posts, newest publication first.
func (s *PostService) ListPublished(ctx context.Context) ([]*domain.Post, error) {
	return s.posts.FindPublished(ctx)
}

// ByAuthor returns the author's posts that viewer may read.
func (s *PostService) ByAuthor(ctx context.Context, viewer *domain.User, author domain.ID) ([]*domain.Post, error) {
	return s.posts.FindByAuthor(ctx, author, Visibility(viewer))
}

// ByCategory returns the posts filed under a category that viewer may read.
func (s *PostService) ByCategory(ctx context.Context, viewer *domain.User, category domain.ID) ([]*domain.Post, error) {
	return s.posts.FindByCategory(ctx, category, Visibility(viewer))
}

// ByTag returns the posts carrying a tag that viewer may read.
func (s *PostService) ByTag(ctx context.Context, viewer *domain.User, tag string) ([]*domain.Post, error) {
	return s.posts.FindByTag(ctx, tag, Visibility(viewer))
}

// Visibility limits post reads to published posts and the viewer's own.
// Admins see everything; a nil viewer sees published posts only.
func Visibility(viewer *domain.User) query.Filter {
	published := query.Eq{Field: domain.PostFieldStatus, Value: string(domain.PostStatusPublished)}
	switch {
	case viewer == nil:
		return published
	case viewer.HasRole(domain.RoleAdmin):
		return nil
	default:
		return query.Or{published, query.Eq{Field: "author", Value: string(viewer.ID)}}
	}
}

// editable loads a live post and checks the actor may change it.
func (s *PostService) editable(ctx context.Context, actor *domain.User, id domain.ID) (*domain.Post, error) {
	p, err := s.posts.FindOneByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canEdit(actor, p) {
		return nil, domain.ErrForbidden
	}
	return p, nil
}

func canEdit(actor *domain.User, p *domain.Post) bool {
	return actor.HasRole(domain.RoleAdmin) || p.IsOwnedBy(actor.ID)
}

// adjustCategories counts the post in added categories and uncounts it from removed ones.
// Category counters are best effort: failures are logged, not returned.
func (s *PostService) adjustCategories(ctx context.Context, next, prev []domain.ID) {
	before := make(map[domain.ID]bool, len(prev))
	for _, id := range prev {
		before[id] = true
	}
	after := make(map[domain.ID]bool, len(next))
	for _, id := range next {
		after[id] = true
	}

	for id := range after {
		if before[id] {
			continue
		}
		if err := s.categories.IncrementPostCount(ctx, id); err != nil {
			s.logger.Warn().Err(err).Str("category_id", id.String()).Msg("failed to increment post count")
		}
	}
	for id := range before {
		if after[id] {
			continue
		}
		if err := s.categories.DecrementPostCount(ctx, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn().Err(err).Str("category_id", id.String()).Msg("failed to decrement post count")
		}
	}
}
