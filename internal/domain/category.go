package domain

import "github.com/prn-tf/inkwell/internal/schema"

// Entity and collection names.
const (
	EntityCategory     = "Category"
	CollectionCategory = "categories"
)

// Category groups posts. Categories form a tree through Parent.
type Category struct {
	Base

	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`

	// Parent is empty for root categories.
	Parent Ref[CategorySummary] `json:"parent,omitzero"`

	// IsActive defaults to true on create.
	IsActive *bool `json:"isActive,omitempty"`

	SortOrder int64 `json:"sortOrder"`

	// PostCount is a best-effort counter adjusted around post create and delete.
	PostCount int64 `json:"postCount"`
}

// NewCategory creates a Category with default values.
func NewCategory(name, slug string) *Category {
	return &Category{
		Name:     name,
		Slug:     slug,
		IsActive: BoolPtr(true),
	}
}

// IsRoot reports whether the category has no parent.
func (c *Category) IsRoot() bool {
	return c.Parent.IsZero()
}

// CategorySummary is the projection of a Category brought in by joins.
type CategorySummary struct {
	ID    ID     `json:"id"`
	Name  string `json:"name,omitempty"`
	Slug  string `json:"slug,omitempty"`
	Color string `json:"color,omitempty"`
}

// CategoryProjection lists the Category fields copied into a CategorySummary.
var CategoryProjection = []string{"name", "slug", "color"}

// CategorySchema returns the metadata of the Category entity.
func CategorySchema() *schema.Spec {
	return schema.New(EntityCategory, CollectionCategory).
		Fields(
			schema.String("name", schema.Required, schema.Trim, schema.Unique, schema.MaxLength(100)),
			schema.String("slug", schema.Required, schema.Trim, schema.Unique, schema.MaxLength(120)),
			schema.String("description", schema.Trim, schema.MaxLength(300)),
			schema.String("color", schema.Trim, schema.MaxLength(20)),
			schema.Ref("parent", EntityCategory, schema.Populate(CategoryProjection...)),
			schema.Bool("isActive", schema.Indexed, schema.Default(true)),
			schema.Int("sortOrder", schema.Default(int64(0))),
			schema.Int("postCount", schema.Counter),
		).
		MustBuild()
}
