package epub

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/otiai10/copy"
)

// Dir is an unpacked EPUB on disk. Moves and writes happen immediately.
type Dir struct {
	root    string
	opfPath string
}

// OpenDir opens an unpacked EPUB rooted at root and validates its structure.
func OpenDir(root string) (*Dir, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to open EPUB directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("failed to open EPUB directory: %s is not a directory", root)
	}

	d := &Dir{root: root}

	mimetype, err := d.ReadFile(MimetypeName)
	if err != nil {
		return nil, ErrMimetypeNotFound
	}
	if strings.TrimSpace(string(mimetype)) != epubMimetype {
		return nil, ErrInvalidMimetype
	}

	content, err := d.ReadFile(ContainerPath)
	if err != nil {
		return nil, ErrContainerNotFound
	}
	if d.opfPath, err = parseRootfile(content); err != nil {
		return nil, err
	}
	return d, nil
}

// CopyDir copies an unpacked EPUB so that it can be normalized without
// touching the original.
func CopyDir(src, dst string) error {
	if _, err := os.Stat(dst); err == nil {
		return fmt.Errorf("%w: %s", ErrFileExists, dst)
	}
	if err := copy.Copy(src, dst); err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	return nil
}

// Root returns the directory holding the package.
func (d *Dir) Root() string {
	return d.root
}

// OPFPath returns the path to the OPF file
func (d *Dir) OPFPath() string {
	return d.opfPath
}

// SetRootfile points container.xml at a relocated package document.
func (d *Dir) SetRootfile(opfPath string) error {
	content, err := d.ReadFile(ContainerPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := d.WriteFile(ContainerPath, rewriteRootfile(content, opfPath)); err != nil {
		return err
	}
	d.opfPath = opfPath
	return nil
}

// Files returns the slash-separated names of all regular files, in
// lexical order.
func (d *Dir) Files() ([]string, error) {
	var names []string
	err := filepath.WalkDir(d.root, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(d.root, p)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", d.root, err)
	}
	sort.Strings(names)
	return names, nil
}

func (d *Dir) ReadFile(name string) ([]byte, error) {
	p, err := d.join(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}

func (d *Dir) WriteFile(name string, data []byte) error {
	p, err := d.join(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", name, err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// Move renames a file, creating the destination directory. Directories
// left empty by the move are removed.
func (d *Dir) Move(from, to string) error {
	src, err := d.join(from)
	if err != nil {
		return err
	}
	dst, err := d.join(to)
	if err != nil {
		return err
	}
	if src == dst {
		return nil
	}
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("%w: %s", ErrFileNotFound, from)
	}
	if _, err := os.Stat(dst); err == nil {
		return fmt.Errorf("%w: %s", ErrFileExists, to)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", to, err)
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("failed to move %s to %s: %w", from, to, err)
	}
	d.pruneEmpty(path.Dir(cleanName(from)))
	return nil
}

func (d *Dir) Exists(name string) bool {
	p, err := d.join(name)
	if err != nil {
		return false
	}
	_, err = os.Stat(p)
	return err == nil
}

// pruneEmpty removes dir and its parents up to the root while they are empty.
func (d *Dir) pruneEmpty(dir string) {
	for dir != "." && dir != "/" && dir != "" {
		if err := os.Remove(filepath.Join(d.root, filepath.FromSlash(dir))); err != nil {
			return
		}
		dir = path.Dir(dir)
	}
}

func (d *Dir) join(name string) (string, error) {
	name = cleanName(name)
	if name == ".." || strings.HasPrefix(name, "../") || path.IsAbs(name) {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, name)
	}
	return filepath.Join(d.root, filepath.FromSlash(name)), nil
}
