package sheet

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocateTwoStatements(t *testing.T) {
	text := "A" + Separator + "B"

	cases := []struct {
		cursor int
		want   string
	}{
		{cursor: 0, want: "A"},
		{cursor: 1, want: ""},
		{cursor: 2, want: ""},
		{cursor: 3, want: "B"},
		{cursor: 4, want: "B"},
		{cursor: -5, want: "A"},
		{cursor: 99, want: "B"},
	}
	for _, tc := range cases {
		span := Locate(text, tc.cursor)
		assert.Equal(t, tc.want, span.Slice(text), "cursor %d", tc.cursor)
		assert.Equal(t, tc.want == "", span.Empty(), "cursor %d", tc.cursor)
	}
}

func TestLocateReturnsInclusiveSpan(t *testing.T) {
	text := "select 1\n\n  select *\n  from c  \n\nselect 3"

	span := Locate(text, 14)
	assert.Equal(t, Span{Start: 12, End: 28}, span)
	assert.Equal(t, "select *\n  from c", span.Slice(text))
	assert.Equal(t, 17, span.Len())
}

func TestLocateSingleStatementAnyCursor(t *testing.T) {
	text := "  select value c.id\nfrom c  \n"
	for cursor := 0; cursor <= len(text); cursor++ {
		assert.Equal(t, "select value c.id\nfrom c", Locate(text, cursor).Slice(text), "cursor %d", cursor)
	}
}

func TestLocateBlankText(t *testing.T) {
	assert.True(t, Locate("", 0).Empty())
	assert.True(t, Locate(" \t\n\n  \n", 3).Empty())
}

func TestLocateRunOfSeparators(t *testing.T) {
	text := "A\n\n\n\nB"
	assert.Equal(t, "A", Locate(text, 0).Slice(text))
	assert.True(t, Locate(text, 3).Empty())
	assert.Equal(t, "B", Locate(text, 6).Slice(text))
}

func TestLocateHandlesMultibyteText(t *testing.T) {
	text := "select 'é'\n\nselect 'ü'"
	assert.Equal(t, "select 'ü'", Locate(text, 14).Slice(text))
}

func TestResolvePrefersSelection(t *testing.T) {
	text := "select 1\n\nselect 2 from c"

	span := Resolve(text, 0, Span{Start: 10, End: 17})
	assert.Equal(t, "select 2", span.Slice(text))

	// A blank selection falls back to the cursor.
	span = Resolve(text, 0, Span{Start: 8, End: 9})
	assert.Equal(t, "select 1", span.Slice(text))

	span = Resolve(text, 12, EmptySpan)
	assert.Equal(t, "select 2 from c", span.Slice(text))
}

func TestSpanSliceOutOfRange(t *testing.T) {
	assert.Equal(t, "", Span{Start: 2, End: 10}.Slice("abc"))
	assert.Equal(t, "", EmptySpan.Slice("abc"))
	assert.Equal(t, 0, EmptySpan.Len())
}
