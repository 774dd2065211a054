// Package pathguard validates user-supplied paths against a fixed document
// root. It rejects traversal (`..`), absolute-path spoofing, and symlinks
// that resolve outside the root.
//
// Validation is a pure function of the filesystem at call time. The gap
// between validation and use (TOCTOU) is an accepted risk: the document
// root is a read-only mount and the attacker-controlled input is the path
// string, not the filesystem.
package pathguard

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultMount is the absolute prefix under which clients may phrase
// root-relative paths as absolute ones (e.g. "/documents/notes").
const DefaultMount = "/documents"

// ValidationError reports a rejected path. Callers map it to a 400-class
// response; it is never retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "pathguard: " + e.Reason
}

// Guard validates paths against a single allowed base directory.
// Safe for concurrent use; it holds no mutable state.
type Guard struct {
	root  string // absolute, cleaned
	mount string // recognized absolute prefix for client paths
}

// New creates a Guard rooted at base. Base is made absolute and cleaned but
// is not required to exist yet.
func New(base string) (*Guard, error) {
	if strings.TrimSpace(base) == "" {
		return nil, errors.New("pathguard: base directory is required")
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("pathguard: resolve base: %w", err)
	}
	return &Guard{root: filepath.Clean(abs), mount: DefaultMount}, nil
}

// WithMount overrides the recognized absolute mount prefix.
func (g *Guard) WithMount(mount string) *Guard {
	return &Guard{root: g.root, mount: filepath.Clean(mount)}
}

// Root returns the absolute allowed base directory.
func (g *Guard) Root() string { return g.root }

// Validate resolves userPath against the root and verifies containment.
// It returns the resolved absolute path. The path does not need to exist;
// if it does exist, symlinks are followed and containment re-verified.
func (g *Guard) Validate(userPath string) (string, error) {
	if strings.TrimSpace(userPath) == "" {
		return "", &ValidationError{Reason: "path cannot be empty"}
	}
	if strings.ContainsRune(userPath, 0) {
		return "", &ValidationError{Reason: "path contains null bytes"}
	}
	if strings.HasPrefix(userPath, "~") {
		return "", &ValidationError{Reason: "home-relative paths (~) are not supported; use '/' for the document root or a relative subpath"}
	}

	var full string
	switch {
	case userPath == "/":
		full = g.root
	case !strings.HasPrefix(userPath, "/"):
		full = filepath.Join(g.root, userPath)
	default:
		// Absolute paths are only accepted when phrased under the mount
		// prefix, e.g. /documents/reports -> <root>/reports.
		cleaned := filepath.Clean(userPath)
		switch {
		case cleaned == g.mount:
			full = g.root
		case strings.HasPrefix(cleaned, g.mount+string(filepath.Separator)):
			full = filepath.Join(g.root, cleaned[len(g.mount)+1:])
		default:
			return "", &ValidationError{
				Reason: fmt.Sprintf("absolute path %q is not within %s; use relative paths", userPath, g.mount),
			}
		}
	}

	// Join/Clean collapse any ../ segments, so a containment check on the
	// lexical result defeats traversal without requiring existence.
	resolved := filepath.Clean(full)
	if !g.contains(g.root, resolved) {
		return "", &ValidationError{
			Reason: fmt.Sprintf("path %q is outside the allowed directory", userPath),
		}
	}

	// A path that exists may still be a symlink pointing outside the root.
	if _, err := os.Lstat(resolved); err == nil {
		real, err := filepath.EvalSymlinks(resolved)
		if err != nil {
			return "", &ValidationError{Reason: fmt.Sprintf("cannot resolve %q: %v", userPath, err)}
		}
		realRoot := g.root
		if rr, err := filepath.EvalSymlinks(g.root); err == nil {
			realRoot = rr
		}
		if !g.contains(realRoot, real) {
			return "", &ValidationError{
				Reason: fmt.Sprintf("symlink escape detected: %q points to %q", userPath, real),
			}
		}
	}

	return resolved, nil
}

// ValidateFile validates userPath and additionally requires an existing
// regular file no larger than maxSizeMB.
func (g *Guard) ValidateFile(userPath string, maxSizeMB int) (string, error) {
	resolved, err := g.Validate(userPath)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return "", &ValidationError{Reason: fmt.Sprintf("file does not exist: %q", userPath)}
		}
		return "", &ValidationError{Reason: fmt.Sprintf("cannot stat %q: %v", userPath, err)}
	}
	if !info.Mode().IsRegular() {
		return "", &ValidationError{Reason: fmt.Sprintf("path is not a regular file: %q", userPath)}
	}

	sizeMB := float64(info.Size()) / (1024 * 1024)
	if sizeMB > float64(maxSizeMB) {
		return "", &ValidationError{
			Reason: fmt.Sprintf("file too large: %.2fMB (max: %dMB)", sizeMB, maxSizeMB),
		}
	}

	return resolved, nil
}

// ValidateDirectory validates userPath and additionally requires an
// existing directory.
func (g *Guard) ValidateDirectory(userPath string) (string, error) {
	resolved, err := g.Validate(userPath)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return "", &ValidationError{Reason: fmt.Sprintf("directory does not exist: %q", userPath)}
		}
		return "", &ValidationError{Reason: fmt.Sprintf("cannot stat %q: %v", userPath, err)}
	}
	if !info.IsDir() {
		return "", &ValidationError{Reason: fmt.Sprintf("path is not a directory: %q", userPath)}
	}

	return resolved, nil
}

// Relative converts a resolved absolute path back to a root-relative one.
func (g *Guard) Relative(resolved string) (string, error) {
	rel, err := filepath.Rel(g.root, resolved)
	if err != nil {
		return "", fmt.Errorf("pathguard: relativize %q: %w", resolved, err)
	}
	return rel, nil
}

func (g *Guard) contains(root, path string) bool {
	return path == root || strings.HasPrefix(path, root+string(filepath.Separator))
}
