package actions

import (
	"path/filepath"
	"strings"
)

// resolveSafeChildPath joins rel onto workspace and rejects results that
// escape it.
func resolveSafeChildPath(workspace, rel string) (string, error) {
	base, err := filepath.Abs(workspace)
	if err != nil {
		return "", inputErrorf("invalid workspace %q: %w", workspace, err)
	}
	target := filepath.Join(base, rel)
	if filepath.IsAbs(rel) {
		target = filepath.Clean(rel)
	}

	r, err := filepath.Rel(base, target)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", inputErrorf("relative path %q is not allowed to refer to a directory outside the workspace", rel)
	}
	return target, nil
}
