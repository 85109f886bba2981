package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/prn-tf/inkwell/internal/domain"
	"github.com/prn-tf/inkwell/internal/query"
	"github.com/prn-tf/inkwell/internal/repository"
)

// CategoryService handles the category tree.
type CategoryService struct {
	categories repository.CategoryRepository
	logger     zerolog.Logger
}

// NewCategoryService creates a new CategoryService.
func NewCategoryService(categories repository.CategoryRepository, logger zerolog.Logger) *CategoryService {
	return &CategoryService{
		categories: categories,
		logger:     logger.With().Str("service", "category").Logger(),
	}
}

// CreateCategoryInput contains the data needed to create a category.
type CreateCategoryInput struct {
	Name        string
	Slug        string
	Description string
	Color       string
	ParentID    domain.ID
	SortOrder   int64
}

// Create creates a category. An empty slug is derived from the name.
func (s *CategoryService) Create(ctx context.Context, input CreateCategoryInput) (*domain.Category, error) {
	slug := input.Slug
	if slug == "" {
		slug = Slugify(input.Name)
	}
	c := domain.NewCategory(input.Name, slug)
	c.Description = input.Description
	c.Color = input.Color
	c.SortOrder = input.SortOrder
	if !input.ParentID.IsZero() {
		c.Parent = domain.RefTo[domain.CategorySummary](input.ParentID)
	}

	created, err := s.categories.Create(ctx, c)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("category_id", created.ID.String()).Str("slug", created.Slug).Msg("category created")
	return created, nil
}

// UpdateCategoryInput holds optional changes. Nil fields are left alone; an empty
// ParentID detaches the category from its parent.
type UpdateCategoryInput struct {
	Name        *string
	Slug        *string
	Description *string
	Color       *string
	ParentID    *domain.ID
	SortOrder   *int64
	IsActive    *bool
}

// Update applies changes to a category.
func (s *CategoryService) Update(ctx context.Context, id domain.ID, input UpdateCategoryInput) (*domain.Category, error) {
	set := repository.SetFields{}
	putString(set, "name", input.Name)
	putString(set, "slug", input.Slug)
	putString(set, "description", input.Description)
	putString(set, "color", input.Color)
	if input.ParentID != nil {
		if *input.ParentID == id {
			return nil, domain.Invalid(domain.EntityCategory, domain.Violation{Field: "parent", Message: "cannot be its own parent"})
		}
		if input.ParentID.IsZero() {
			set["parent"] = nil
		} else {
			set["parent"] = string(*input.ParentID)
		}
	}
	if input.SortOrder != nil {
		set["sortOrder"] = *input.SortOrder
	}
	if input.IsActive != nil {
		set["isActive"] = *input.IsActive
	}
	if len(set) == 0 {
		return s.categories.FindOneByID(ctx, id)
	}
	return s.categories.UpdateOneByID(ctx, id, set)
}

// Remove deactivates a category. Posts keep their reference.
func (s *CategoryService) Remove(ctx context.Context, id domain.ID) error {
	if _, err := s.categories.Deactivate(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("category_id", id.String()).Msg("category deactivated")
	return nil
}

// Delete soft-deletes a category.
func (s *CategoryService) Delete(ctx context.Context, id domain.ID) error {
	deleted, err := s.categories.SoftDeleteOneByID(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return domain.NotFound(domain.EntityCategory, "no live row with id "+id.String())
	}
	return nil
}

// Get retrieves an active category with its parent expanded.
func (s *CategoryService) Get(ctx context.Context, id domain.ID) (*domain.Category, error) {
	c, err := s.categories.FindOneByID(ctx, id, query.WithJoin())
	if err != nil {
		return nil, err
	}
	if c.IsActive != nil && !*c.IsActive {
		return nil, domain.NotFound(domain.EntityCategory, "category is inactive")
	}
	return c, nil
}

// GetBySlug retrieves a category by slug.
func (s *CategoryService) GetBySlug(ctx context.Context, slug string) (*domain.Category, error) {
	return s.categories.FindBySlug(ctx, slug)
}

// List returns active categories, paginated when p is non-nil.
func (s *CategoryService) List(ctx context.Context, p *query.Pagination) (query.Listing[*domain.Category], error) {
	if p == nil {
		all, err := s.categories.FindActive(ctx)
		if err != nil {
			return query.Listing[*domain.Category]{}, err
		}
		return query.Listing[*domain.Category]{Items: all}, nil
	}
	return s.categories.FindAll(ctx, query.Eq{Field: "isActive", Value: true}, query.WithPagination(*p), query.WithJoin())
}

// ListAll returns every category including inactive ones. Administrative.
func (s *CategoryService) ListAll(ctx context.Context, p query.Pagination) (*query.Page[*domain.Category], error) {
	return s.categories.ListPaginated(ctx, nil, p, query.WithJoin())
}

// Roots returns top-level categories.
func (s *CategoryService) Roots(ctx context.Context) ([]*domain.Category, error) {
	return s.categories.FindRootCategories(ctx)
}

// Children returns the children of a category.
func (s *CategoryService) Children(ctx context.Context, parent domain.ID) ([]*domain.Category, error) {
	return s.categories.FindByParent(ctx, parent)
}

// Reorder sets the sort order of a category.
func (s *CategoryService) Reorder(ctx context.Context, id domain.ID, sortOrder int64) (*domain.Category, error) {
	return s.categories.UpdateSortOrder(ctx, id, sortOrder)
}
