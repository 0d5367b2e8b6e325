package tool

import (
	"path/filepath"

	"github.com/trioagent/trio/internal/permission"
)

// buildDiffMetadata renders a unified diff and line counts for a file
// mutation, enriching Write/Edit result metadata with the same rendering the
// permission prompts use (internal/permission.RenderDiff), keyed by the
// path relative to the project directory.
func buildDiffMetadata(path, before, after, baseDir string) (string, int, int) {
	if before == after {
		return "", 0, 0
	}
	fd := permission.RenderDiff(relativePath(path, baseDir), before, after)
	return fd.Unified, fd.Additions, fd.Deletions
}

func relativePath(path, baseDir string) string {
	if path == "" {
		return ""
	}
	if baseDir == "" {
		return path
	}
	if rel, err := filepath.Rel(baseDir, path); err == nil {
		return rel
	}
	return path
}
