package domain

import "github.com/prn-tf/inkwell/internal/schema"

// Entity and collection names.
const (
	EntityLike     = "Like"
	CollectionLike = "likes"
)

// Like records that a user likes a post. At most one row exists per (post, user);
// unliking soft-deletes it and liking again restores it.
type Like struct {
	Base

	Post Ref[PostSummary]   `json:"post,omitzero"`
	User Ref[AuthorSummary] `json:"user,omitzero"`
}

// NewLike creates a Like.
func NewLike(post, user ID) *Like {
	return &Like{
		Post: RefTo[PostSummary](post),
		User: RefTo[AuthorSummary](user),
	}
}

// LikeSchema returns the metadata of the Like entity.
func LikeSchema() *schema.Spec {
	return schema.New(EntityLike, CollectionLike).
		Fields(
			schema.Ref("post", EntityPost, schema.Required, schema.Populate(PostProjection...)),
			schema.Ref("user", EntityUser, schema.Required, schema.Populate(AuthorProjection...)),
		).
		Index(schema.IndexName(CollectionLike, "ux", "post", "user"), true, "post", "user").
		MustBuild()
}

// Schemas returns the metadata of every entity.
func Schemas() []*schema.Spec {
	return []*schema.Spec{UserSchema(), CategorySchema(), PostSchema(), CommentSchema(), LikeSchema()}
}

// NewCatalog builds the catalog of every entity.
func NewCatalog() *schema.Catalog {
	c, err := schema.NewCatalog(Schemas()...)
	if err != nil {
		panic(err)
	}
	return c
}
