package permission

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/trioagent/trio/pkg/types"
)

// RenderDiff produces a unified diff between before and after for path,
// attached to Edit/Write-class PermissionRequests so the Navigator's prompt
// shows the proposed change inline (spec.md §4.3).
func RenderDiff(path, before, after string) types.FileDiff {
	dmp := diffmatchpatch.New()

	charsBefore, charsAfter, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(charsBefore, charsAfter, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var additions, deletions int
	for _, d := range diffs {
		lines := countLines(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			additions += lines
		case diffmatchpatch.DiffDelete:
			deletions += lines
		}
	}

	return types.FileDiff{
		Path:      path,
		Additions: additions,
		Deletions: deletions,
		Unified:   generateUnifiedDiff(path, diffs),
	}
}

func countLines(text string) int {
	if text == "" {
		return 0
	}
	n := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		n++
	}
	return n
}

// generateUnifiedDiff renders diffmatchpatch's line-level diffs as a
// unified-diff-style body: '+' for insertions, '-' for deletions, ' ' for
// context, no header hunks since the request already carries the path.
func generateUnifiedDiff(path string, diffs []diffmatchpatch.Diff) string {
	var b strings.Builder
	fmt.Fprintf(&b, "--- %s\n+++ %s\n", path, path)

	for _, d := range diffs {
		prefix := ' '
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = '+'
		case diffmatchpatch.DiffDelete:
			prefix = '-'
		case diffmatchpatch.DiffEqual:
			prefix = ' '
		}

		text := strings.TrimSuffix(d.Text, "\n")
		if text == "" {
			continue
		}
		for _, line := range strings.Split(text, "\n") {
			b.WriteByte(byte(prefix))
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}

	return b.String()
}
