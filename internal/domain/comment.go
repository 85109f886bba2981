package domain

import "github.com/prn-tf/inkwell/internal/schema"

// Entity and collection names.
const (
	EntityComment     = "Comment"
	CollectionComment = "comments"
)

// MaxCommentLength bounds comment content in characters.
const MaxCommentLength = 2000

// Comment is a reply to a post, optionally threaded under another comment.
type Comment struct {
	Base

	Post    Ref[PostSummary]   `json:"post,omitzero"`
	Author  Ref[AuthorSummary] `json:"author,omitzero"`
	Content string             `json:"content"`

	// Parent is set for replies.
	Parent Ref[CommentSummary] `json:"parent,omitzero"`
}

// NewComment creates a top-level Comment.
func NewComment(post, author ID, content string) *Comment {
	return &Comment{
		Post:    RefTo[PostSummary](post),
		Author:  RefTo[AuthorSummary](author),
		Content: content,
	}
}

// IsReply reports whether the comment is threaded under another comment.
func (c *Comment) IsReply() bool {
	return !c.Parent.IsZero()
}

// CommentSummary is the projection of a Comment brought in by joins.
type CommentSummary struct {
	ID      ID     `json:"id"`
	Content string `json:"content,omitempty"`
}

// CommentSchema returns the metadata of the Comment entity.
func CommentSchema() *schema.Spec {
	return schema.New(EntityComment, CollectionComment).
		Fields(
			schema.Ref("post", EntityPost, schema.Required, schema.Populate(PostProjection...)),
			schema.Ref("author", EntityUser, schema.Required, schema.Populate(AuthorProjection...)),
			schema.String("content", schema.Required, schema.Trim, schema.MaxLength(MaxCommentLength)),
			schema.Ref("parent", EntityComment, schema.Populate("content")),
		).
		MustBuild()
}
