package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderDiff_Additions(t *testing.T) {
	before := "line one\nline two\n"
	after := "line one\nline two\nline three\n"

	diff := RenderDiff("foo.txt", before, after)

	assert.Equal(t, "foo.txt", diff.Path)
	assert.Equal(t, 1, diff.Additions)
	assert.Equal(t, 0, diff.Deletions)
	assert.Contains(t, diff.Unified, "+line three")
}

func TestRenderDiff_Deletions(t *testing.T) {
	before := "keep\nremove me\n"
	after := "keep\n"

	diff := RenderDiff("bar.txt", before, after)

	assert.Equal(t, 0, diff.Additions)
	assert.Equal(t, 1, diff.Deletions)
	assert.Contains(t, diff.Unified, "-remove me")
}

func TestRenderDiff_NoChange(t *testing.T) {
	text := "unchanged\n"
	diff := RenderDiff("baz.txt", text, text)

	assert.Equal(t, 0, diff.Additions)
	assert.Equal(t, 0, diff.Deletions)
}
