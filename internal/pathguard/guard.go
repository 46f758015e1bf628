// Package pathguard confines file access to a single root directory.
//
// Every path is re-resolved on each call: the guard keeps no cache of
// validated paths, since the filesystem can change between two accesses.
package pathguard

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/operation"
)

// Path is an absolute, canonical path proven to lie inside the root.
type Path string

func (p Path) String() string { return string(p) }

// WriteMode selects how OpenForWrite treats an existing target.
type WriteMode int

const (
	// CreateOnly refuses to touch an existing file.
	CreateOnly WriteMode = iota
	// Overwrite truncates an existing file.
	Overwrite
	// Append adds to the end of an existing file, creating it if needed.
	Append
)

func (m WriteMode) String() string {
	switch m {
	case CreateOnly:
		return "create"
	case Overwrite:
		return "overwrite"
	case Append:
		return "append"
	default:
		return "unknown"
	}
}

// Guard resolves caller paths against a fixed root.
type Guard struct {
	root string
}

// New canonicalizes root and returns a guard for it. The root must exist.
func New(root string) (*Guard, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	canon, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	info, err := os.Stat(canon)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", canon)
	}
	return &Guard{root: canon}, nil
}

// Root returns the canonical root directory.
func (g *Guard) Root() string { return g.root }

// Resolve canonicalizes raw and checks it lies inside the root.
// Relative paths are taken relative to the root. Absolute paths that already
// name a location under the root are accepted as-is.
func (g *Guard) Resolve(raw string) (Path, error) {
	if strings.ContainsRune(raw, 0) {
		return "", operation.Errorf(operation.KindAccessDenied, raw, "invalid path")
	}
	p := raw
	if !filepath.IsAbs(p) {
		p = filepath.Join(g.root, p)
	}
	p = filepath.Clean(p)

	canon, err := evalExisting(p)
	if err != nil {
		return "", operation.Wrap(operation.KindAccessDenied, raw, err)
	}
	if !within(g.root, canon) {
		return "", operation.Errorf(operation.KindAccessDenied, raw, "outside %s", g.root)
	}
	return Path(canon), nil
}

// evalExisting resolves symlinks on the deepest existing ancestor of p and
// re-attaches the missing tail, so paths to files not yet created still get
// their link indirection resolved.
func evalExisting(p string) (string, error) {
	var tail []string
	cur := p
	for {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			parts := append([]string{resolved}, tail...)
			return filepath.Join(parts...), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		if _, lerr := os.Lstat(cur); lerr == nil {
			return "", fmt.Errorf("dangling link %s", cur)
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return p, nil
		}
		tail = append([]string{filepath.Base(cur)}, tail...)
		cur = parent
	}
}

func within(root, p string) bool {
	if p == root {
		return true
	}
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Rel returns p relative to the root, using forward slashes.
func (g *Guard) Rel(p Path) string {
	rel, err := filepath.Rel(g.root, string(p))
	if err != nil {
		return string(p)
	}
	return filepath.ToSlash(rel)
}

// Open resolves raw and opens it for reading.
func (g *Guard) Open(raw string) (*os.File, error) {
	p, err := g.Resolve(raw)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(string(p))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, operation.Wrap(operation.KindNotFound, raw, err)
		}
		return nil, fmt.Errorf("open %s: %w", raw, err)
	}
	return f, nil
}

// ReadFile resolves raw and returns its contents.
func (g *Guard) ReadFile(raw string) ([]byte, error) {
	f, err := g.Open(raw)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", raw, err)
	}
	if info.IsDir() {
		return nil, operation.Errorf(operation.KindNotFound, raw, "is a directory")
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", raw, err)
	}
	return data, nil
}

// Exists reports whether raw resolves inside the root and exists.
func (g *Guard) Exists(raw string) (bool, error) {
	p, err := g.Resolve(raw)
	if err != nil {
		return false, err
	}
	_, err = os.Lstat(string(p))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

// OpenForWrite resolves raw and opens it for writing under mode.
// CreateOnly fails with WriteDenied when the target exists; the check and
// creation are a single O_EXCL open.
func (g *Guard) OpenForWrite(raw string, mode WriteMode) (*os.File, error) {
	p, err := g.Resolve(raw)
	if err != nil {
		return nil, operation.Wrap(operation.KindWriteDenied, raw, err)
	}
	if err := os.MkdirAll(filepath.Dir(string(p)), 0755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	flags := os.O_WRONLY | os.O_CREATE
	switch mode {
	case CreateOnly:
		flags |= os.O_EXCL
	case Overwrite:
		flags |= os.O_TRUNC
	case Append:
		flags |= os.O_APPEND
	default:
		return nil, operation.Errorf(operation.KindWriteDenied, raw, "unknown write mode %d", mode)
	}

	f, err := os.OpenFile(string(p), flags, 0644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, operation.Errorf(operation.KindWriteDenied, raw, "file exists")
		}
		return nil, fmt.Errorf("open %s for %s: %w", raw, mode, err)
	}
	return f, nil
}

// WriteFile writes data to raw under mode.
func (g *Guard) WriteFile(raw string, data []byte, mode WriteMode) (Path, error) {
	f, err := g.OpenForWrite(raw, mode)
	if err != nil {
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", fmt.Errorf("write %s: %w", raw, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", raw, err)
	}
	return Path(f.Name()), nil
}

// Glob returns files under the root matching a doublestar pattern, each
// re-resolved so links pointing outside the root are dropped.
func (g *Guard) Glob(pattern string) ([]Path, error) {
	pattern = filepath.ToSlash(strings.TrimPrefix(pattern, "/"))
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("glob: invalid pattern %q", pattern)
	}

	var matches []Path
	fsys := os.DirFS(g.root)
	err := doublestar.GlobWalk(fsys, pattern, func(path string, d fs.DirEntry) error {
		if d.IsDir() {
			return nil
		}
		p, err := g.Resolve(path)
		if err != nil {
			return nil
		}
		matches = append(matches, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("glob: %w", err)
	}
	return matches, nil
}
