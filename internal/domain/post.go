package domain

import (
	"time"

	"github.com/prn-tf/inkwell/internal/schema"
)

// PostStatus is the publication state of a post.
type PostStatus string

const (
	// PostStatusDraft is visible only to its author and admins.
	PostStatusDraft PostStatus = "DRAFT"

	// PostStatusPublished is publicly visible and carries a publishedAt timestamp.
	PostStatusPublished PostStatus = "PUBLISHED"

	// PostStatusArchived is hidden from public listings but kept.
	PostStatusArchived PostStatus = "ARCHIVED"
)

// IsValid reports whether s is a known status.
func (s PostStatus) IsValid() bool {
	switch s {
	case PostStatusDraft, PostStatusPublished, PostStatusArchived:
		return true
	}
	return false
}

// Entity and collection names.
const (
	EntityPost     = "Post"
	CollectionPost = "posts"
)

// Post field names used by repository helpers and services.
const (
	PostFieldStatus       = "status"
	PostFieldPublishedAt  = "publishedAt"
	PostFieldViewCount    = "viewCount"
	PostFieldLikeCount    = "likeCount"
	PostFieldCommentCount = "commentCount"
)

// Post is an article written by an author.
type Post struct {
	Base

	Title         string     `json:"title"`
	Slug          string     `json:"slug,omitempty"`
	Excerpt       string     `json:"excerpt,omitempty"`
	Content       string     `json:"content"`
	FeaturedImage string     `json:"featuredImage,omitempty"`
	Status        PostStatus `json:"status,omitempty"`

	Author     Ref[AuthorSummary]     `json:"author,omitzero"`
	Categories []Ref[CategorySummary] `json:"categories,omitempty"`
	Tags       []string               `json:"tags,omitempty"`

	ViewCount    int64 `json:"viewCount"`
	LikeCount    int64 `json:"likeCount"`
	CommentCount int64 `json:"commentCount"`

	// PublishedAt is maintained by the repository on status transitions.
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
}

// NewPost creates a draft Post.
func NewPost(author ID, title, slug, content string) *Post {
	return &Post{
		Title:   title,
		Slug:    slug,
		Content: content,
		Status:  PostStatusDraft,
		Author:  RefTo[AuthorSummary](author),
	}
}

// IsPublished reports whether the post is publicly visible.
func (p *Post) IsPublished() bool {
	return p.Status == PostStatusPublished
}

// IsOwnedBy reports whether id authored the post.
func (p *Post) IsOwnedBy(id ID) bool {
	return p.Author.ID == id
}

// PostSummary is the projection of a Post brought in by joins.
type PostSummary struct {
	ID    ID     `json:"id"`
	Title string `json:"title,omitempty"`
	Slug  string `json:"slug,omitempty"`
}

// PostProjection lists the Post fields copied into a PostSummary.
var PostProjection = []string{"title", "slug"}

// PostSchema returns the metadata of the Post entity.
func PostSchema() *schema.Spec {
	return schema.New(EntityPost, CollectionPost).
		Fields(
			schema.String("title", schema.Required, schema.Trim, schema.MaxLength(200)),
			schema.String("slug", schema.Trim, schema.UniqueWhenPresent, schema.MaxLength(220)),
			schema.String("excerpt", schema.Trim, schema.MaxLength(500)),
			schema.String("content", schema.Required),
			schema.String("featuredImage", schema.Trim),
			schema.String(PostFieldStatus, schema.Default(string(PostStatusDraft)),
				schema.Enum(string(PostStatusDraft), string(PostStatusPublished), string(PostStatusArchived))),
			schema.Ref("author", EntityUser, schema.Required, schema.Populate(AuthorProjection...)),
			schema.RefList("categories", EntityCategory, schema.Populate(CategoryProjection...)),
			schema.StringList("tags", schema.Trim, schema.Indexed),
			schema.Int(PostFieldViewCount, schema.Counter),
			schema.Int(PostFieldLikeCount, schema.Counter),
			schema.Int(PostFieldCommentCount, schema.Counter),
			schema.Time(PostFieldPublishedAt, schema.Managed),
		).
		Index(schema.IndexName(CollectionPost, "ix", PostFieldStatus, PostFieldPublishedAt), false,
			PostFieldStatus, "-"+PostFieldPublishedAt).
		MustBuild()
}
