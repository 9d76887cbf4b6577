package query

import (
	"errors"
	"math"
	"testing"

	"github.com/hyperjump/fulltextable/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"single word", "apple", []string{"apple"}},
		{"collapses whitespace", "  apple \t pie\n", []string{"apple", "pie"}},
		{"drops punctuation-only tokens", "apple -- !!! pie", []string{"apple", "pie"}},
		{"keeps mixed tokens", "don't c++", []string{"don't", "c++"}},
		{"empty", "", []string{}},
		{"whitespace only", "   ", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.input))
		})
	}
}

func TestWords(t *testing.T) {
	assert.Equal(t, []string{"don", "t"}, Words("Don't"))
	assert.Equal(t, []string{"c"}, Words("C++"))
	assert.Equal(t, []string{"apple"}, Words("APPLE"))
}

func TestBuild_EmptyQuery(t *testing.T) {
	b := NewBuilder()
	for _, q := range []string{"", "   ", "?!"} {
		_, err := b.Build(&models.SearchRequest{Query: q})
		require.Error(t, err)
		assert.True(t, errors.Is(err, models.ErrInvalidQuery), "query %q", q)
	}
}

func TestBuild_LimitOffsetPolicy(t *testing.T) {
	tests := []struct {
		name       string
		limit      *int
		offset     *int
		wantLimit  int
		wantOffset int
	}{
		{"defaults", nil, nil, 10, 0},
		{"explicit", models.Int(25), models.Int(5), 25, 5},
		{"zero limit is unbounded", models.Int(0), nil, 0, 0},
		{"negative limit uses default", models.Int(-5), nil, 10, 0},
		{"negative offset clamps to zero", nil, models.Int(-3), 10, 0},
	}
	b := NewBuilder()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := b.Build(&models.SearchRequest{Query: "apple", Limit: tt.limit, Offset: tt.offset})
			require.NoError(t, err)
			assert.Equal(t, tt.wantLimit, q.Limit)
			assert.Equal(t, tt.wantOffset, q.Offset)
			assert.False(t, q.Paged)
		})
	}
}

func TestBuild_NegativeLimitMatchesDefault(t *testing.T) {
	b := NewBuilder()
	neg, err := b.Build(&models.SearchRequest{Query: "apple", Limit: models.Int(-5)})
	require.NoError(t, err)
	ten, err := b.Build(&models.SearchRequest{Query: "apple", Limit: models.Int(10)})
	require.NoError(t, err)
	assert.Equal(t, ten, neg)
}

func TestBuild_PageMode(t *testing.T) {
	b := NewBuilder(WithDefaultPageSize(20))

	q, err := b.Build(&models.SearchRequest{
		Query: "apple", Page: 3, Limit: models.Int(2), Offset: models.Int(7),
	})
	require.NoError(t, err)
	assert.True(t, q.Paged)
	assert.Equal(t, 20, q.Limit, "explicit limit is ignored in page mode")
	assert.Equal(t, 40, q.Offset, "explicit offset is ignored in page mode")
	assert.Equal(t, 3, q.Page)

	q, err = b.Build(&models.SearchRequest{Query: "apple", Page: 1, PageSize: 5})
	require.NoError(t, err)
	assert.Equal(t, 5, q.Limit)
	assert.Equal(t, 0, q.Offset)
	assert.Equal(t, 5, q.PageSize)
}

func TestBuild_PageOutOfRange(t *testing.T) {
	b := NewBuilder()

	_, err := b.Build(&models.SearchRequest{Query: "apple", Page: math.MaxInt / 15, PageSize: 15})
	require.ErrorIs(t, err, models.ErrInvalidQuery)

	_, err = b.Build(&models.SearchRequest{Query: "apple", Page: math.MaxInt})
	require.ErrorIs(t, err, models.ErrInvalidQuery)

	last := math.MaxInt / 15
	q, err := b.Build(&models.SearchRequest{Query: "apple", Page: last, PageSize: 15})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, q.Offset, 0)
	assert.Equal(t, (last-1)*15, q.Offset)
}

func TestBuild_OffsetOutOfRange(t *testing.T) {
	b := NewBuilder()

	_, err := b.Build(&models.SearchRequest{Query: "apple", Limit: models.Int(10), Offset: models.Int(math.MaxInt)})
	require.ErrorIs(t, err, models.ErrInvalidQuery)

	q, err := b.Build(&models.SearchRequest{Query: "apple", Limit: models.Int(0), Offset: models.Int(math.MaxInt)})
	require.NoError(t, err)
	assert.Equal(t, math.MaxInt, q.Offset)
}

func TestBuild_TypeFilter(t *testing.T) {
	b := NewBuilder()

	q, err := b.Build(&models.SearchRequest{
		Query:     "apple",
		OnlyTypes: []string{"Article", "Comment", "Article", "x'; DROP TABLE x; --"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Article", "Comment"}, q.Types)
	require.Len(t, q.Dropped, 1)
	assert.Equal(t, "x'; DROP TABLE x; --", q.Dropped[0].Value)
	assert.True(t, errors.Is(q.Dropped[0], models.ErrInvalidFilter))
	assert.False(t, q.Empty)
}

func TestBuild_AllInvalidTypesMatchNothing(t *testing.T) {
	q, err := NewBuilder().Build(&models.SearchRequest{
		Query:     "apple",
		OnlyTypes: []string{"'; DROP TABLE x; --", "bad type"},
	})
	require.NoError(t, err)
	assert.Empty(t, q.Types)
	assert.Len(t, q.Dropped, 2)
	assert.True(t, q.Empty)
}

func TestBuild_EmptyTypeListIsNoFilter(t *testing.T) {
	q, err := NewBuilder().Build(&models.SearchRequest{Query: "apple", OnlyTypes: []string{}})
	require.NoError(t, err)
	assert.Nil(t, q.Types)
	assert.False(t, q.Empty)
}

func TestBuild_ParentFilter(t *testing.T) {
	b := NewBuilder()

	q, err := b.Build(&models.SearchRequest{Query: "apple", ParentKeys: models.ParentKeys{10}})
	require.NoError(t, err)
	assert.Equal(t, []int64{10}, q.Parents)
	assert.True(t, q.ParentEquality())

	q, err = b.Build(&models.SearchRequest{Query: "apple", ParentKeys: models.ParentKeys{1, 2, 1}})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, q.Parents)
	assert.False(t, q.ParentEquality())

	q, err = b.Build(&models.SearchRequest{Query: "apple", ParentKeys: models.ParentKeys{}})
	require.NoError(t, err)
	assert.True(t, q.Empty)

	q, err = b.Build(&models.SearchRequest{Query: "apple"})
	require.NoError(t, err)
	assert.Nil(t, q.Parents)
	assert.False(t, q.Empty)
}

func TestValidType(t *testing.T) {
	assert.True(t, ValidType("Article"))
	assert.True(t, ValidType("blog_post2"))
	assert.False(t, ValidType(""))
	assert.False(t, ValidType("Blog Post"))
	assert.False(t, ValidType("x'"))
	long := make([]byte, models.MaxTypeLength+1)
	for i := range long {
		long[i] = 'a'
	}
	assert.False(t, ValidType(string(long)))
}
