package validate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DataPath resolves filename against dataRoot and verifies the result is
// strictly contained within dataRoot after canonicalization, per the P3
// traversal-safety invariant: every filename submitted to a get request must
// resolve under the configured data root, or the request is denied before
// any data frame is sent.
//
// filename is rejected outright if it names a dotfile (hidden from catalog
// listings) or contains a path separator (the catalog is a flat namespace;
// no subdirectories are exposed).
func DataPath(dataRoot, filename string) (string, error) {
	if filename == "" {
		return "", fmt.Errorf("%w: filename cannot be empty", ErrAccessDenied)
	}
	if strings.ContainsAny(filename, `/\`) {
		return "", fmt.Errorf("%w: %q: flat namespace, no subdirectories", ErrAccessDenied, filename)
	}
	if strings.HasPrefix(filename, ".") {
		return "", fmt.Errorf("%w: %q: dotfiles are not served", ErrAccessDenied, filename)
	}

	root, err := filepath.Abs(dataRoot)
	if err != nil {
		return "", fmt.Errorf("%w: cannot resolve data root: %v", ErrAccessDenied, err)
	}
	root, err = filepath.EvalSymlinks(root)
	if err != nil {
		return "", fmt.Errorf("%w: cannot resolve data root: %v", ErrAccessDenied, err)
	}

	joined := filepath.Join(root, filename)
	canonical, err := canonicalizeLeaf(joined)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAccessDenied, err)
	}

	if !strings.HasPrefix(canonical, root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q escapes data root", ErrAccessDenied, filename)
	}
	return canonical, nil
}

// canonicalizeLeaf resolves any symlink at path's leaf so the containment
// check below sees where a symlink actually points rather than where it
// sits. A missing leaf is not a traversal attempt — filename has already
// been checked for separators and a leading dot, so the unresolved path is
// already guaranteed to sit directly under root — and is returned as-is,
// leaving "does this file exist" to the caller's own stat.
func canonicalizeLeaf(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		if os.IsNotExist(err) {
			return path, nil
		}
		return "", err
	}
	return resolved, nil
}
