// Package opf reads and rewrites the package document of an EPUB: the
// manifest, the spine and the guide.
//
// All three views share one Document. They never cache entries; every
// lookup re-reads the XML tree, so attribute writes made by one view are
// visible to the next query of any other view.
package opf

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
	"github.com/yuanying/epubnorm/internal/pathcodec"
)

const (
	// FlatDir is the directory that holds every file after normalization.
	FlatDir = "OEBPS"

	// CanonicalPath is the location of the package document after normalization.
	CanonicalPath = FlatDir + "/content.opf"
)

// Element paths use local-name() so that documents declaring the OPF
// namespace as default and documents using an opf: prefix both match.
var (
	manifestExpr  = xpath.MustCompile(`//*[local-name()='manifest']`)
	itemsExpr     = xpath.MustCompile(`//*[local-name()='manifest']/*[local-name()='item']`)
	spineExpr     = xpath.MustCompile(`//*[local-name()='spine']`)
	itemrefsExpr  = xpath.MustCompile(`//*[local-name()='spine']/*[local-name()='itemref']`)
	guideExpr     = xpath.MustCompile(`//*[local-name()='guide']`)
	referenceExpr = xpath.MustCompile(`//*[local-name()='guide']/*[local-name()='reference']`)
	metadataExpr  = xpath.MustCompile(`//*[local-name()='metadata']`)
)

const itemByIDFormat = `//*[local-name()='manifest']/*[local-name()='item'][@id=%s]`

// Storage is the file store backing a package. Names are slash-separated
// paths relative to the package root.
type Storage interface {
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte) error
	Move(from, to string) error
	Exists(name string) bool
}

// Document is the shared context of the manifest, spine and guide: the
// parsed package document and its current location inside the package.
type Document struct {
	store    Storage
	path     string
	original string
	root     *xmlquery.Node
}

// LoadDocument reads and parses the package document at path.
func LoadDocument(store Storage, path string) (*Document, error) {
	path = pathcodec.Clean(path)
	d := &Document{
		store:    store,
		path:     path,
		original: path,
	}
	if err := d.Reload(); err != nil {
		return nil, err
	}
	return d, nil
}

// Path returns the current location of the package document. Every href in
// the document is relative to this path.
func (d *Document) Path() string {
	return d.path
}

// OriginalPath returns the location the document was loaded from, before
// any relocation.
func (d *Document) OriginalPath() string {
	return d.original
}

// Root returns the root node of the current tree. Callers must not hold on
// to it across Reload.
func (d *Document) Root() *xmlquery.Node {
	return d.root
}

// Storage returns the store the document was loaded from.
func (d *Document) Storage() Storage {
	return d.store
}

// Reload discards the in-memory tree and parses the document again from
// storage at its current path.
func (d *Document) Reload() error {
	data, err := d.store.ReadFile(d.path)
	if err != nil {
		return fmt.Errorf("failed to read package document %s: %w", d.path, err)
	}
	root, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to parse package document %s: %w", d.path, err)
	}
	d.root = root
	return nil
}

// Save serializes the tree to storage at the current path.
func (d *Document) Save() error {
	if err := d.store.WriteFile(d.path, []byte(d.String())); err != nil {
		return fmt.Errorf("failed to write package document %s: %w", d.path, err)
	}
	return nil
}

// Relocate saves the document, moves it to newPath and reloads it from
// there. Relative paths computed afterwards use newPath as their base.
func (d *Document) Relocate(newPath string) error {
	newPath = pathcodec.Clean(newPath)
	if err := d.Save(); err != nil {
		return err
	}
	if newPath != d.path {
		if err := d.store.Move(d.path, newPath); err != nil {
			return fmt.Errorf("failed to move package document to %s: %w", newPath, err)
		}
		d.path = newPath
	}
	return d.Reload()
}

// String returns the serialized document.
func (d *Document) String() string {
	if d.root == nil {
		return ""
	}
	return d.root.OutputXML(true)
}

// xpathLiteral quotes s as an XPath 1.0 string literal.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	for i, p := range parts {
		parts[i] = "'" + p + "'"
	}
	return "concat(" + strings.Join(parts, `, "'", `) + ")"
}

// attrLocal returns the value of the first attribute of n whose local name
// is local, regardless of its namespace prefix.
func attrLocal(n *xmlquery.Node, local string) string {
	for _, a := range n.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

func outerXML(n *xmlquery.Node) string {
	if n == nil {
		return ""
	}
	return n.OutputXML(true)
}

func discardLogger(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.New(slog.DiscardHandler)
}
