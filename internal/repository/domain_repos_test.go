package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/prn-tf/inkwell/internal/domain"
	"github.com/prn-tf/inkwell/internal/query"
	"github.com/prn-tf/inkwell/internal/store"
)

func TestPost_PublishTransition(t *testing.T) {
	forEachDriver(t, func(t *testing.T, repos *Repositories) {
		ctx := context.Background()
		author := createUser(t, repos, "pub@example.com")
		post := createPost(t, repos, author.ID, "Draft")
		require.Equal(t, domain.PostStatusDraft, post.Status)
		require.Nil(t, post.PublishedAt)

		before := time.Now().UTC().Add(-time.Second)
		published, err := repos.Post.Publish(ctx, post.ID)
		after := time.Now().UTC().Add(time.Second)
		require.NoError(t, err)
		require.Equal(t, domain.PostStatusPublished, published.Status)
		require.NotNil(t, published.PublishedAt)
		require.True(t, published.PublishedAt.After(before) && published.PublishedAt.Before(after))

		archived, err := repos.Post.Archive(ctx, post.ID)
		require.NoError(t, err)
		require.Equal(t, domain.PostStatusArchived, archived.Status)
		require.Equal(t, published.PublishedAt, archived.PublishedAt)

		draft, err := repos.Post.Unpublish(ctx, post.ID)
		require.NoError(t, err)
		require.Equal(t, domain.PostStatusDraft, draft.Status)
		require.Nil(t, draft.PublishedAt)

		viaUpdate, err := repos.Post.UpdateOneByID(ctx, post.ID, SetFields{domain.PostFieldStatus: string(domain.PostStatusPublished)})
		require.NoError(t, err)
		require.NotNil(t, viaUpdate.PublishedAt, "a status write maintains publishedAt too")

		published2, err := repos.Post.FindPublished(ctx)
		require.NoError(t, err)
		require.Len(t, published2, 1)
	})
}

func TestPost_CreatePublished(t *testing.T) {
	forEachDriver(t, func(t *testing.T, repos *Repositories) {
		author := createUser(t, repos, "live@example.com")
		post := createPost(t, repos, author.ID, "Live", func(p *domain.Post) { p.Status = domain.PostStatusPublished })
		require.NotNil(t, post.PublishedAt)
		require.Equal(t, post.CreatedAt, *post.PublishedAt)
	})
}

func TestPost_JoinExpansion(t *testing.T) {
	forEachDriver(t, func(t *testing.T, repos *Repositories) {
		ctx := context.Background()
		u := createUser(t, repos, "joined@example.com")
		c1, err := repos.Category.Create(ctx, &domain.Category{Name: "One", Slug: "one", Color: "red"})
		require.NoError(t, err)
		c2, err := repos.Category.Create(ctx, &domain.Category{Name: "Two", Slug: "two"})
		require.NoError(t, err)

		post := createPost(t, repos, u.ID, "Joined", func(p *domain.Post) {
			p.Slug = "joined"
			p.Categories = domain.RefsTo[domain.CategorySummary](c1.ID, c2.ID)
		})

		plain, err := repos.Post.FindOneByID(ctx, post.ID)
		require.NoError(t, err)
		require.False(t, plain.Author.Expanded())
		require.Equal(t, u.ID, plain.Author.ID)
		require.Equal(t, []domain.ID{c1.ID, c2.ID}, domain.RefIDs(plain.Categories))

		joined, err := repos.Post.FindOneByID(ctx, post.ID, query.WithJoin())
		require.NoError(t, err)
		require.True(t, joined.Author.Expanded())
		require.Equal(t, domain.AuthorSummary{
			ID:        u.ID,
			FirstName: "Ada",
			LastName:  "Lovelace",
			Email:     "joined@example.com",
		}, *joined.Author.Doc)
		require.Len(t, joined.Categories, 2)
		require.Equal(t, domain.CategorySummary{ID: c1.ID, Name: "One", Slug: "one", Color: "red"}, *joined.Categories[0].Doc)
		require.Equal(t, domain.CategorySummary{ID: c2.ID, Name: "Two", Slug: "two"}, *joined.Categories[1].Doc)

		bySlug, err := repos.Post.FindBySlug(ctx, "joined")
		require.NoError(t, err)
		require.True(t, bySlug.Author.Expanded())

		// a soft-deleted target is left as a bare id
		_, err = repos.Category.SoftDeleteOneByID(ctx, c2.ID)
		require.NoError(t, err)
		joined, err = repos.Post.FindOneByID(ctx, post.ID, query.WithJoin())
		require.NoError(t, err)
		require.True(t, joined.Categories[0].Expanded())
		require.False(t, joined.Categories[1].Expanded())
		require.Equal(t, c2.ID, joined.Categories[1].ID)

		// explicit paths replace the default and honour their selection
		custom, err := repos.Post.FindOneByID(ctx, post.ID,
			query.WithPopulate(query.Populate{Path: "author", Select: []string{"email"}}))
		require.NoError(t, err)
		require.Equal(t, domain.AuthorSummary{ID: u.ID, Email: "joined@example.com"}, *custom.Author.Doc)
		require.False(t, custom.Categories[0].Expanded())
	})
}

func TestPost_NamedQueries(t *testing.T) {
	forEachDriver(t, func(t *testing.T, repos *Repositories) {
		ctx := context.Background()
		a := createUser(t, repos, "a@example.com")
		b := createUser(t, repos, "b@example.com")
		cat, err := repos.Category.Create(ctx, domain.NewCategory("Go", "go"))
		require.NoError(t, err)

		createPost(t, repos, a.ID, "A1", func(p *domain.Post) {
			p.Tags = []string{"go", "tips"}
			p.Categories = domain.RefsTo[domain.CategorySummary](cat.ID)
		})
		createPost(t, repos, a.ID, "A2", func(p *domain.Post) { p.Tags = []string{"rust"} })
		createPost(t, repos, b.ID, "B1", func(p *domain.Post) { p.Tags = []string{"go"} })

		byAuthor, err := repos.Post.FindByAuthor(ctx, a.ID)
		require.NoError(t, err)
		require.Len(t, byAuthor, 2)
		require.Equal(t, "A2", byAuthor[0].Title, "newest first")

		byTag, err := repos.Post.FindByTag(ctx, "go")
		require.NoError(t, err)
		require.Len(t, byTag, 2)

		byCategory, err := repos.Post.FindByCategory(ctx, cat.ID)
		require.NoError(t, err)
		require.Len(t, byCategory, 1)
		require.Equal(t, "A1", byCategory[0].Title)
		require.True(t, byCategory[0].Categories[0].Expanded())
	})
}

func TestPost_Counters(t *testing.T) {
	forEachDriver(t, func(t *testing.T, repos *Repositories) {
		ctx := context.Background()
		a := createUser(t, repos, "count@example.com")
		post := createPost(t, repos, a.ID, "Counters")

		_, err := repos.Post.IncrementLikeCount(ctx, post.ID)
		require.NoError(t, err)
		_, err = repos.Post.IncrementCommentCount(ctx, post.ID)
		require.NoError(t, err)
		_, err = repos.Post.IncrementCommentCount(ctx, post.ID)
		require.NoError(t, err)
		got, err := repos.Post.DecrementCommentCount(ctx, post.ID)
		require.NoError(t, err)
		require.Equal(t, int64(1), got.LikeCount)
		require.Equal(t, int64(1), got.CommentCount)

		got, err = repos.Post.DecrementLikeCount(ctx, post.ID)
		require.NoError(t, err)
		require.Zero(t, got.LikeCount)

		_, err = repos.Post.IncrementViewCount(ctx, "missing")
		require.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestCategory_Tree(t *testing.T) {
	forEachDriver(t, func(t *testing.T, repos *Repositories) {
		ctx := context.Background()

		root, err := repos.Category.Create(ctx, &domain.Category{Name: "Root", Slug: "root", SortOrder: 2})
		require.NoError(t, err)
		other, err := repos.Category.Create(ctx, &domain.Category{Name: "Alpha", Slug: "alpha", SortOrder: 1})
		require.NoError(t, err)
		child, err := repos.Category.Create(ctx, &domain.Category{
			Name:   "Child",
			Slug:   "child",
			Parent: domain.RefTo[domain.CategorySummary](root.ID),
		})
		require.NoError(t, err)

		_, err = repos.Category.Create(ctx, &domain.Category{
			Name:   "Orphan",
			Slug:   "orphan",
			Parent: domain.RefTo[domain.CategorySummary]("missing"),
		})
		require.ErrorIs(t, err, domain.ErrValidation)

		roots, err := repos.Category.FindRootCategories(ctx)
		require.NoError(t, err)
		require.Len(t, roots, 2)
		require.Equal(t, other.ID, roots[0].ID, "sortOrder ascending")
		require.Equal(t, root.ID, roots[1].ID)

		children, err := repos.Category.FindByParent(ctx, root.ID)
		require.NoError(t, err)
		require.Len(t, children, 1)
		require.Equal(t, child.ID, children[0].ID)

		bySlug, err := repos.Category.FindBySlug(ctx, "child")
		require.NoError(t, err)
		require.True(t, bySlug.Parent.Expanded())
		require.Equal(t, "Root", bySlug.Parent.Doc.Name)

		byName, err := repos.Category.FindByName(ctx, "Alpha")
		require.NoError(t, err)
		require.Equal(t, other.ID, byName.ID)

		_, err = repos.Category.Deactivate(ctx, other.ID)
		require.NoError(t, err)
		active, err := repos.Category.FindActive(ctx)
		require.NoError(t, err)
		require.Len(t, active, 2)
		for _, c := range active {
			require.NotEqual(t, other.ID, c.ID)
		}
		reactivated, err := repos.Category.Activate(ctx, other.ID)
		require.NoError(t, err)
		require.True(t, *reactivated.IsActive)

		moved, err := repos.Category.UpdateSortOrder(ctx, other.ID, 10)
		require.NoError(t, err)
		require.Equal(t, int64(10), moved.SortOrder)
	})
}

func TestCategory_PostCountTolerance(t *testing.T) {
	forEachDriver(t, func(t *testing.T, repos *Repositories) {
		ctx := context.Background()
		cat, err := repos.Category.Create(ctx, domain.NewCategory("Counted", "counted"))
		require.NoError(t, err)

		require.NoError(t, repos.Category.IncrementPostCount(ctx, cat.ID))
		require.NoError(t, repos.Category.IncrementPostCount(ctx, cat.ID))
		require.NoError(t, repos.Category.DecrementPostCount(ctx, cat.ID))
		require.NoError(t, repos.Category.IncrementPostCount(ctx, "missing"))

		got, err := repos.Category.FindOneByID(ctx, cat.ID)
		require.NoError(t, err)
		require.Equal(t, int64(1), got.PostCount)
	})
}

func TestUser_Queries(t *testing.T) {
	forEachDriver(t, func(t *testing.T, repos *Repositories) {
		ctx := context.Background()
		u := createUser(t, repos, "Mixed@Example.com")
		require.Equal(t, "mixed@example.com", u.Email)
		require.Equal(t, domain.RoleUser, u.Role)

		found, err := repos.User.FindByEmail(ctx, "MIXED@example.COM")
		require.NoError(t, err)
		require.Equal(t, u.ID, found.ID)

		exists, err := repos.User.ExistsByEmail(ctx, "mixed@example.com")
		require.NoError(t, err)
		require.True(t, exists)
		exists, err = repos.User.ExistsByEmail(ctx, "nobody@example.com")
		require.NoError(t, err)
		require.False(t, exists)

		at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
		logged, err := repos.User.UpdateLastLogin(ctx, u.ID, at)
		require.NoError(t, err)
		require.True(t, at.Equal(*logged.LastLoginAt))

		admin, err := repos.User.SetRole(ctx, u.ID, domain.RoleAdmin)
		require.NoError(t, err)
		require.Equal(t, domain.RoleAdmin, admin.Role)

		_, err = repos.User.SetRole(ctx, u.ID, domain.Role("ROOT"))
		require.ErrorIs(t, err, domain.ErrValidation)

		off, err := repos.User.Deactivate(ctx, u.ID)
		require.NoError(t, err)
		require.False(t, off.CanAuthenticate())
		on, err := repos.User.Activate(ctx, u.ID)
		require.NoError(t, err)
		require.True(t, on.CanAuthenticate())

		page, err := repos.User.ListPaginated(ctx, nil, query.Pagination{Search: "lovelace"})
		require.NoError(t, err)
		require.Equal(t, int64(1), page.Pagination.Total)
	})
}

func TestComment_Threads(t *testing.T) {
	forEachDriver(t, func(t *testing.T, repos *Repositories) {
		ctx := context.Background()
		u := createUser(t, repos, "talk@example.com")
		post := createPost(t, repos, u.ID, "Discussed")

		top, err := repos.Comment.Create(ctx, domain.NewComment(post.ID, u.ID, "first"))
		require.NoError(t, err)
		second, err := repos.Comment.Create(ctx, domain.NewComment(post.ID, u.ID, "second"))
		require.NoError(t, err)
		reply := domain.NewComment(post.ID, u.ID, "reply")
		reply.Parent = domain.RefTo[domain.CommentSummary](top.ID)
		_, err = repos.Comment.Create(ctx, reply)
		require.NoError(t, err)

		page, err := repos.Comment.FindByPost(ctx, post.ID, query.Pagination{})
		require.NoError(t, err)
		require.Len(t, page.Data, 2)
		require.Equal(t, top.ID, page.Data[0].ID, "oldest first")
		require.Equal(t, second.ID, page.Data[1].ID)
		require.True(t, page.Data[0].Author.Expanded())

		replies, err := repos.Comment.FindReplies(ctx, top.ID)
		require.NoError(t, err)
		require.Len(t, replies, 1)
		require.Equal(t, "reply", replies[0].Content)

		n, err := repos.Comment.CountByPost(ctx, post.ID)
		require.NoError(t, err)
		require.Equal(t, int64(3), n)

		long := make([]byte, domain.MaxCommentLength+1)
		for i := range long {
			long[i] = 'x'
		}
		_, err = repos.Comment.Create(ctx, domain.NewComment(post.ID, u.ID, string(long)))
		require.ErrorIs(t, err, domain.ErrValidation)
		require.Equal(t, "content", domain.FieldOf(err))
	})
}

func TestLike_UniquePairAndRestore(t *testing.T) {
	forEachDriver(t, func(t *testing.T, repos *Repositories) {
		ctx := context.Background()
		u := createUser(t, repos, "fan@example.com")
		post := createPost(t, repos, u.ID, "Liked")

		like, err := repos.Like.Create(ctx, domain.NewLike(post.ID, u.ID))
		require.NoError(t, err)

		_, err = repos.Like.Create(ctx, domain.NewLike(post.ID, u.ID))
		require.ErrorIs(t, err, domain.ErrConflict)
		require.Equal(t, "post,user", domain.FieldOf(err))

		_, err = repos.Like.SoftDeleteOneByID(ctx, like.ID)
		require.NoError(t, err)
		_, err = repos.Like.FindByPostAndUser(ctx, post.ID, u.ID)
		require.ErrorIs(t, err, domain.ErrNotFound)

		// the deleted row still holds the pair, so liking again restores it
		withdrawn, err := repos.Like.FindByPostAndUser(ctx, post.ID, u.ID, query.WithDeleted())
		require.NoError(t, err)
		require.Equal(t, like.ID, withdrawn.ID)
		restored, err := repos.Like.RestoreOneByID(ctx, withdrawn.ID)
		require.NoError(t, err)
		require.True(t, restored)

		n, err := repos.Like.CountByPost(ctx, post.ID)
		require.NoError(t, err)
		require.Equal(t, int64(1), n)

		byPost, err := repos.Like.FindByPost(ctx, post.ID, query.Pagination{})
		require.NoError(t, err)
		require.Len(t, byPost.Data, 1)
		require.Equal(t, "fan@example.com", byPost.Data[0].User.Doc.Email)

		byUser, err := repos.Like.FindByUser(ctx, u.ID, query.Pagination{})
		require.NoError(t, err)
		require.Len(t, byUser.Data, 1)
		require.Equal(t, "Liked", byUser.Data[0].Post.Doc.Title)
	})
}

func TestPublishedAtHook(t *testing.T) {
	now := "2024-01-01T00:00:00.000000000Z"
	tests := []struct {
		name      string
		update    store.Update
		wantSet   map[string]any
		wantUnset []string
	}{
		{
			name:    "publish stamps",
			update:  store.Update{Set: map[string]any{"status": "PUBLISHED"}},
			wantSet: map[string]any{"status": "PUBLISHED", "publishedAt": now},
		},
		{
			name:    "explicit publishedAt wins",
			update:  store.Update{Set: map[string]any{"status": "PUBLISHED", "publishedAt": "x"}},
			wantSet: map[string]any{"status": "PUBLISHED", "publishedAt": "x"},
		},
		{
			name:      "draft clears once",
			update:    store.Update{Set: map[string]any{"status": "DRAFT"}, Unset: []string{"publishedAt"}},
			wantSet:   map[string]any{"status": "DRAFT"},
			wantUnset: []string{"publishedAt"},
		},
		{
			name:    "other writes untouched",
			update:  store.Update{Set: map[string]any{"title": "t"}},
			wantSet: map[string]any{"title": "t"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := tt.update
			publishedAtHook(&u, now)
			require.Equal(t, tt.wantSet, u.Set)
			require.Equal(t, tt.wantUnset, u.Unset)
		})
	}
}
