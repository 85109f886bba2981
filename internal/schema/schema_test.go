package schema

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func articleSpec(t *testing.T) *Spec {
	t.Helper()
	s, err := New("Article", "articles").
		Fields(
			String("title", Required, Trim, MaxLength(10)),
			String("email", Trim, CaseInsensitive, Unique),
			String("state", Default("DRAFT"), Enum("DRAFT", "LIVE")),
			Ref("owner", "Person", Required, Populate("name")),
			RefList("tags", "Tag"),
			StringList("labels", Trim),
			Int("views", Counter),
			Bool("visible", Default(true)),
			Time("seenAt"),
		).
		Index("ix_articles_state_seenat", false, "state", "-seenAt").
		Build()
	require.NoError(t, err)
	return s
}

func TestBuilder_Errors(t *testing.T) {
	tests := []struct {
		name    string
		builder *Builder
	}{
		{
			name:    "duplicate field",
			builder: New("A", "a").Fields(String("x"), Int("x")),
		},
		{
			name:    "base field redeclared",
			builder: New("A", "a").Field(String(FieldCreatedAt)),
		},
		{
			name:    "invalid name",
			builder: New("A", "a").Field(String("drop table")),
		},
		{
			name:    "reference without target",
			builder: New("A", "a").Field(Ref("owner", "")),
		},
		{
			name:    "index on unknown field",
			builder: New("A", "a").Field(String("x")).Index("ix", false, "y"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.builder.Build()
			require.Error(t, err)
		})
	}

	require.Panics(t, func() { New("A", "a").Field(String("")).MustBuild() })
}

func TestSpec_Indexes(t *testing.T) {
	s := articleSpec(t)

	byName := make(map[string]Index)
	for _, ix := range s.Indexes() {
		byName[ix.Name] = ix
	}

	require.Contains(t, byName, "ux_articles_email")
	require.True(t, byName["ux_articles_email"].Unique)
	require.Contains(t, byName, "ix_articles_owner")
	require.Contains(t, byName, "ix_articles_tags")
	require.Contains(t, byName, "ix_articles_deletedat")
	require.NotContains(t, byName, "ix_articles_title")

	compound := byName["ix_articles_state_seenat"]
	require.Equal(t, []IndexKey{{Field: "state"}, {Field: "seenAt", Desc: true}}, compound.Keys)

	_, ok := s.IndexByName("UX_ARTICLES_EMAIL")
	require.True(t, ok)
}

func TestSpec_Metadata(t *testing.T) {
	s := articleSpec(t)

	require.Equal(t, "Article", s.Entity())
	require.Equal(t, "articles", s.Collection())
	require.True(t, s.Has(FieldID))
	require.True(t, s.Has(FieldDeletedAt))

	f, ok := s.Field(FieldUpdatedAt)
	require.True(t, ok)
	require.True(t, f.IsBase())
	require.True(t, f.Managed)

	refs := s.References()
	require.Len(t, refs, 2)
	require.Equal(t, "owner", refs[0].Name)
	require.Equal(t, []string{"name"}, refs[0].Populate)

	require.NotContains(t, s.Sortable(), "tags")
	require.Contains(t, s.Sortable(), "views")
}

func TestSpec_Canonicalize(t *testing.T) {
	s := articleSpec(t)
	at := time.Date(2024, 3, 1, 12, 0, 0, 5, time.FixedZone("X", 3600))

	doc := map[string]any{
		"title":  "  Hello ",
		"email":  " Ada@Example.COM ",
		"owner":  map[string]any{"id": "p1", "name": "ignored"},
		"tags":   []any{"t1", map[string]any{"id": "t2"}, "t1"},
		"labels": []string{" go ", "db", ""},
		"views":  json.Number("3"),
		"seenAt": at,
	}
	require.Empty(t, s.Canonicalize(doc))

	require.Equal(t, "Hello", doc["title"])
	require.Equal(t, "ada@example.com", doc["email"])
	require.Equal(t, "p1", doc["owner"])
	require.Equal(t, []any{"t1", "t2"}, doc["tags"])
	require.Equal(t, []any{"go", "db"}, doc["labels"])
	require.Equal(t, int64(3), doc["views"])
	require.Equal(t, "2024-03-01T11:00:00.000000005Z", doc["seenAt"])
}

func TestSpec_CanonicalizeViolations(t *testing.T) {
	s := articleSpec(t)

	doc := map[string]any{
		"views":   "many",
		"visible": "yes",
		"bogus":   1,
	}
	violations := s.Canonicalize(doc)
	require.Len(t, violations, 3)
	require.Equal(t, "bogus", violations[0].Field)
	require.Equal(t, "views", violations[1].Field)
	require.Equal(t, "visible", violations[2].Field)
}

func TestSpec_DefaultsAndValidate(t *testing.T) {
	s := articleSpec(t)

	doc := map[string]any{"title": "Hi", "owner": "p1", "visible": nil}
	s.ApplyDefaults(doc)
	require.Equal(t, "DRAFT", doc["state"])
	require.Equal(t, true, doc["visible"])
	require.Equal(t, int64(0), doc["views"])
	require.Empty(t, s.Validate(doc, true))

	bad := map[string]any{"title": "far too long a title", "state": "GONE"}
	violations := s.Validate(bad, true)
	fields := make([]string, 0, len(violations))
	for _, v := range violations {
		fields = append(fields, v.Field)
	}
	require.ElementsMatch(t, []string{"title", "state", "owner"}, fields)

	// partial updates only check present fields
	require.Empty(t, s.Validate(map[string]any{"state": "LIVE"}, false))
	require.Len(t, s.Validate(map[string]any{"title": ""}, false), 1)
}

func TestTimeLayout_SortsLexically(t *testing.T) {
	earlier := time.Date(2024, 1, 1, 0, 0, 0, 900_000_000, time.UTC)
	later := earlier.Add(time.Millisecond * 150)

	a, b := FormatTime(earlier), FormatTime(later)
	require.Len(t, a, len(b))
	require.Less(t, a, b)

	parsed, err := ParseTime(a)
	require.NoError(t, err)
	require.True(t, parsed.Equal(earlier))
}

func TestNewCatalog(t *testing.T) {
	person := New("Person", "people").Field(String("name")).MustBuild()
	tag := New("Tag", "tags").MustBuild()

	_, err := NewCatalog(articleSpec(t), person)
	require.Error(t, err)

	c, err := NewCatalog(articleSpec(t), person, tag)
	require.NoError(t, err)

	s, ok := c.SchemaOf("Person")
	require.True(t, ok)
	require.Equal(t, "people", s.Collection())
	require.Len(t, c.All(), 3)
	require.Equal(t, "Article", c.All()[0].Entity())

	_, err = NewCatalog(person, person)
	require.Error(t, err)
}
