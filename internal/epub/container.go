// Package epub stores the files of an EPUB package: a zip archive held in
// memory (Container) or an unpacked directory on disk (Dir). Both satisfy
// opf.Storage.
package epub

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/klauspost/compress/zip"
)

// Container is an EPUB archive loaded into memory. Modifications are
// written out only by Write or Save.
type Container struct {
	files   map[string][]byte
	order   []string
	opfPath string
}

// Open opens an EPUB file and validates its structure
func Open(path string) (*Container, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open EPUB: %w", err)
	}
	defer zr.Close()

	return load(&zr.Reader)
}

// Read loads an EPUB archive from r.
func Read(r io.ReaderAt, size int64) (*Container, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to open EPUB: %w", err)
	}
	return load(zr)
}

func load(zr *zip.Reader) (*Container, error) {
	c := &Container{
		files: make(map[string][]byte),
	}

	var mimetype *zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := normalizePath(f.Name)
		data, err := readZipFile(f)
		if err != nil {
			return nil, err
		}
		if _, dup := c.files[name]; !dup {
			c.order = append(c.order, name)
		}
		c.files[name] = data
		if name == MimetypeName {
			mimetype = f
		}
	}

	if err := c.validateMimetype(mimetype); err != nil {
		return nil, err
	}
	if err := c.parseContainer(); err != nil {
		return nil, err
	}
	return c, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", f.Name, err)
	}
	return data, nil
}

// validateMimetype checks that the mimetype file exists and is valid
func (c *Container) validateMimetype(f *zip.File) error {
	if f == nil {
		return ErrMimetypeNotFound
	}

	// Check that mimetype is not compressed
	if f.Method != zip.Store {
		return ErrMimetypeCompressed
	}

	if string(c.files[MimetypeName]) != epubMimetype {
		return ErrInvalidMimetype
	}

	return nil
}

// parseContainer parses container.xml to extract OPF path
func (c *Container) parseContainer() error {
	content, ok := c.files[ContainerPath]
	if !ok {
		return ErrContainerNotFound
	}
	opfPath, err := parseRootfile(content)
	if err != nil {
		return err
	}
	c.opfPath = opfPath
	return nil
}

// OPFPath returns the path to the OPF file
func (c *Container) OPFPath() string {
	return c.opfPath
}

// SetRootfile points container.xml at a relocated package document.
func (c *Container) SetRootfile(opfPath string) error {
	c.put(ContainerPath, rewriteRootfile(c.files[ContainerPath], opfPath))
	c.opfPath = opfPath
	return nil
}

// Files returns the names of all files in archive order.
func (c *Container) Files() []string {
	names := make([]string, len(c.order))
	copy(names, c.order)
	return names
}

// ReadFile reads the contents of a file from the EPUB
func (c *Container) ReadFile(name string) ([]byte, error) {
	name = normalizePath(name)
	data, ok := c.files[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, name)
	}
	return data, nil
}

// WriteFile replaces or adds a file.
func (c *Container) WriteFile(name string, data []byte) error {
	c.put(normalizePath(name), data)
	return nil
}

// Move renames a file. The destination must not exist.
func (c *Container) Move(from, to string) error {
	from, to = normalizePath(from), normalizePath(to)
	data, ok := c.files[from]
	if !ok {
		return fmt.Errorf("%w: %s", ErrFileNotFound, from)
	}
	if from == to {
		return nil
	}
	if _, exists := c.files[to]; exists {
		return fmt.Errorf("%w: %s", ErrFileExists, to)
	}

	delete(c.files, from)
	c.files[to] = data
	for i, name := range c.order {
		if name == from {
			c.order[i] = to
			break
		}
	}
	return nil
}

// Exists reports whether the archive holds name.
func (c *Container) Exists(name string) bool {
	_, ok := c.files[normalizePath(name)]
	return ok
}

// Remove deletes a file from the archive.
func (c *Container) Remove(name string) {
	name = normalizePath(name)
	if _, ok := c.files[name]; !ok {
		return
	}
	delete(c.files, name)
	for i, n := range c.order {
		if n == name {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

func (c *Container) put(name string, data []byte) {
	if _, ok := c.files[name]; !ok {
		c.order = append(c.order, name)
	}
	c.files[name] = data
}

// Write writes the archive to w. The mimetype entry is written first and
// stored uncompressed; every other file is deflated.
func (c *Container) Write(w io.Writer) error {
	zw := zip.NewWriter(w)

	mw, err := zw.CreateHeader(&zip.FileHeader{
		Name:   MimetypeName,
		Method: zip.Store,
	})
	if err != nil {
		return fmt.Errorf("failed to create mimetype: %w", err)
	}
	if _, err := mw.Write([]byte(epubMimetype)); err != nil {
		return fmt.Errorf("failed to write mimetype: %w", err)
	}

	for _, name := range c.order {
		if name == MimetypeName {
			continue
		}
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:   name,
			Method: zip.Deflate,
		})
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", name, err)
		}
		if _, err := io.Copy(fw, bytes.NewReader(c.files[name])); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize EPUB: %w", err)
	}
	return nil
}

// Save writes the archive to a file at path.
func (c *Container) Save(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to close output file: %w", cerr)
		}
	}()

	return c.Write(f)
}

// Extract writes every file of the archive below dir.
func (c *Container) Extract(dir string) error {
	d := &Dir{root: dir}
	for _, name := range c.order {
		if err := d.WriteFile(name, c.files[name]); err != nil {
			return err
		}
	}
	return nil
}

func cleanName(name string) string {
	return path.Clean(normalizePath(name))
}
