package pathguard_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/kotae/internal/pathguard"
)

func newGuard(t *testing.T) (*pathguard.Guard, string) {
	t.Helper()
	root := t.TempDir()
	g, err := pathguard.New(root)
	require.NoError(t, err)
	return g, root
}

func TestValidateRejectsBadInput(t *testing.T) {
	g, _ := newGuard(t)

	cases := []struct {
		name string
		path string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"null byte", "notes\x00.txt"},
		{"tilde", "~/secrets"},
		{"tilde user", "~root/secrets"},
		{"absolute outside mount", "/etc/passwd"},
		{"traversal", "../../etc"},
		{"nested traversal", "notes/../../../etc/passwd"},
		{"mount traversal", "/documents/../etc"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := g.Validate(tc.path)
			require.Error(t, err)
			var verr *pathguard.ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestValidateResolvesWithinRoot(t *testing.T) {
	g, root := newGuard(t)

	resolved, err := g.Validate("/")
	require.NoError(t, err)
	assert.Equal(t, g.Root(), resolved)

	resolved, err = g.Validate("notes/report.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "notes", "report.txt"), resolved)

	// Absolute paths under the mount prefix are re-rooted.
	resolved, err = g.Validate("/documents/notes")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "notes"), resolved)

	resolved, err = g.Validate("/documents")
	require.NoError(t, err)
	assert.Equal(t, g.Root(), resolved)

	// Redundant separators and dots collapse to a contained path.
	resolved, err = g.Validate("notes//./report.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "notes", "report.txt"), resolved)
}

func TestValidateNonexistentPathAllowed(t *testing.T) {
	g, root := newGuard(t)

	// Validation must not require existence; discovery validates before
	// directories are listed, loading validates before files are read.
	resolved, err := g.Validate("does/not/exist.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "does", "not", "exist.txt"), resolved)
}

func TestValidateSymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink creation requires privileges on windows")
	}
	g, root := newGuard(t)

	outside := t.TempDir()
	secret := filepath.Join(outside, "secret.txt")
	require.NoError(t, os.WriteFile(secret, []byte("secret"), 0o600))

	// A link living at a valid location but pointing outside the root.
	require.NoError(t, os.Symlink(secret, filepath.Join(root, "innocent.txt")))
	_, err := g.Validate("innocent.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "symlink escape")

	// A link pointing inside the root is fine.
	inside := filepath.Join(root, "real.txt")
	require.NoError(t, os.WriteFile(inside, []byte("ok"), 0o600))
	require.NoError(t, os.Symlink(inside, filepath.Join(root, "alias.txt")))
	_, err = g.Validate("alias.txt")
	assert.NoError(t, err)
}

func TestValidateFile(t *testing.T) {
	g, root := newGuard(t)

	path := filepath.Join(root, "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o600))

	resolved, err := g.ValidateFile("doc.txt", 10)
	require.NoError(t, err)
	assert.Equal(t, path, resolved)

	_, err = g.ValidateFile("missing.txt", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")

	require.NoError(t, os.Mkdir(filepath.Join(root, "subdir"), 0o755))
	_, err = g.ValidateFile("subdir", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a regular file")
}

func TestValidateFileSizeCeiling(t *testing.T) {
	g, root := newGuard(t)

	big := filepath.Join(root, "big.bin")
	require.NoError(t, os.WriteFile(big, make([]byte, 2*1024*1024), 0o600))

	_, err := g.ValidateFile("big.bin", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file too large")

	_, err = g.ValidateFile("big.bin", 3)
	assert.NoError(t, err)
}

func TestValidateDirectory(t *testing.T) {
	g, root := newGuard(t)

	require.NoError(t, os.Mkdir(filepath.Join(root, "docs"), 0o755))
	resolved, err := g.ValidateDirectory("docs")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "docs"), resolved)

	_, err = g.ValidateDirectory("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")

	require.NoError(t, os.WriteFile(filepath.Join(root, "plain.txt"), []byte("x"), 0o600))
	_, err = g.ValidateDirectory("plain.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}

func TestRelative(t *testing.T) {
	g, root := newGuard(t)

	rel, err := g.Relative(filepath.Join(root, "a", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("a", "b.txt"), rel)
}
