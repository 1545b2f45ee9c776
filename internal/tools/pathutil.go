package tools

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidatePath resolves requestedPath against workDir and rejects any path
// that escapes it, adapted from the teacher's tools/pathutil.go ValidatePath.
func ValidatePath(workDir, requestedPath string) (string, error) {
	if !filepath.IsAbs(requestedPath) {
		return "", fmt.Errorf("path %q must be absolute", requestedPath)
	}

	cleaned := filepath.Clean(requestedPath)
	rel, err := filepath.Rel(workDir, cleaned)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside the working directory", requestedPath)
	}
	return cleaned, nil
}

// HasHiddenSegment reports whether any path segment (other than "." or
// "..") begins with a dot, per spec §4.1's hidden-path read rejection.
func HasHiddenSegment(workDir, absPath string) bool {
	rel, err := filepath.Rel(workDir, absPath)
	if err != nil {
		rel = absPath
	}
	for _, seg := range strings.Split(rel, string(filepath.Separator)) {
		if seg == "." || seg == ".." || seg == "" {
			continue
		}
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}
