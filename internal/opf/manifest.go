package opf

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/yuanying/epubnorm/internal/pathcodec"
)

// Manifest resolves ids, paths and types of the package's files and
// drives the flattening of the package.
type Manifest struct {
	doc     *Document
	spine   *Spine
	factory ItemFactory
	logger  *slog.Logger
}

// ItemQuery selects a manifest item by package-absolute path or by id.
// Path takes precedence when both are set.
type ItemQuery struct {
	Path string
	ID   string
}

// Normalize flattens the package in three phases:
//
//  1. every image, HTML, CSS and misc item normalizes its own content;
//  2. every entry's href is rewritten to its hashed path and the file is
//     moved there;
//  3. the package document is saved and relocated to CanonicalPath.
//
// Phase 1 completes for all items before any file moves. A failure leaves
// the package partially normalized; nothing is rolled back.
func (m *Manifest) Normalize() error {
	m.logger.Debug("normalizing manifest content")
	err := m.Each(func(item Item, _ *xmlquery.Node) error {
		if err := item.Normalize(); err != nil {
			return fmt.Errorf("failed to normalize %s: %w", item.AbsPath(), err)
		}
		return nil
	}, ItemImage, ItemHTML, ItemCSS, ItemMisc)
	if err != nil {
		return &PhaseError{Phase: PhaseContent, Err: err}
	}

	m.logger.Debug("rewriting manifest paths")
	store := m.doc.Storage()
	err = m.Each(func(item Item, node *xmlquery.Node) error {
		if pathcodec.IsExternal(node.SelectAttr("href")) {
			return nil
		}
		node.SetAttr("href", pathcodec.Escape(item.NormalizedHashedPath(CanonicalPath)))

		from, to := item.AbsPath(), item.NormalizedHashedPath("")
		if from == to {
			return nil
		}
		// Another entry with the same href already moved the file.
		if !store.Exists(from) && store.Exists(to) {
			return nil
		}
		if err := store.Move(from, to); err != nil {
			return fmt.Errorf("failed to move %s to %s: %w", from, to, err)
		}
		m.logger.Debug("moved manifest item", "id", item.ID(), "from", from, "to", to)
		return nil
	})
	if err != nil {
		return &PhaseError{Phase: PhaseRewrite, Err: err}
	}

	m.logger.Debug("relocating package document", "from", m.doc.Path(), "to", CanonicalPath)
	if err := m.doc.Relocate(CanonicalPath); err != nil {
		return &PhaseError{Phase: PhaseRelocate, Err: err}
	}
	return nil
}

// String returns the manifest element as XML.
func (m *Manifest) String() string {
	return outerXML(xmlquery.QuerySelector(m.doc.Root(), manifestExpr))
}

// Assets returns image, CSS and misc items.
func (m *Manifest) Assets() []Item { return m.Items(ItemImage, ItemCSS, ItemMisc) }

func (m *Manifest) Images() []Item { return m.Items(ItemImage) }

func (m *Manifest) HTML() []Item { return m.Items(ItemHTML) }

func (m *Manifest) CSS() []Item { return m.Items(ItemCSS) }

func (m *Manifest) Misc() []Item { return m.Items(ItemMisc) }

// Items returns the manifest items in document order, restricted to the
// given types when any are given.
func (m *Manifest) Items(types ...ItemType) []Item {
	var items []Item
	for _, node := range m.nodes() {
		item := m.newItem(m.entryFor(node))
		if hasType(types, item.Type()) {
			items = append(items, item)
		}
	}
	return items
}

// Each calls fn for every manifest item of the given types (all items when
// types is empty) with the item's underlying node, which fn may modify.
// Iteration stops at the first error.
func (m *Manifest) Each(fn func(Item, *xmlquery.Node) error, types ...ItemType) error {
	for _, node := range m.nodes() {
		item := m.newItem(m.entryFor(node))
		if !hasType(types, item.Type()) {
			continue
		}
		if err := fn(item, node); err != nil {
			return err
		}
	}
	return nil
}

// Entries returns every manifest entry in document order.
func (m *Manifest) Entries() []Entry {
	nodes := m.nodes()
	entries := make([]Entry, 0, len(nodes))
	for _, node := range nodes {
		entries = append(entries, m.entryFor(node))
	}
	return entries
}

// Item returns the item with the given id.
func (m *Manifest) Item(id string) (Item, bool, error) {
	p, ok, err := m.PathFromID(id)
	if err != nil || !ok {
		return nil, false, err
	}
	item, ok := m.ItemForPath(p)
	return item, ok, nil
}

// Lookup returns the item selected by q.
func (m *Manifest) Lookup(q ItemQuery) (Item, bool, error) {
	switch {
	case q.Path != "":
		item, ok := m.ItemForAbsPath(q.Path)
		return item, ok, nil
	case q.ID != "":
		return m.Item(q.ID)
	default:
		return nil, false, ErrMissingArguments
	}
}

// PathFromID returns the decoded href of the entry with the given id.
// An id shared by several entries yields *AmbiguousReferenceError.
func (m *Manifest) PathFromID(id string) (string, bool, error) {
	nodes, err := xmlquery.QueryAll(m.doc.Root(), fmt.Sprintf(itemByIDFormat, xpathLiteral(id)))
	if err != nil {
		return "", false, fmt.Errorf("opf: failed to query manifest id %q: %w", id, err)
	}

	switch len(nodes) {
	case 0:
		return "", false, nil
	case 1:
		return decodeHref(nodes[0].SelectAttr("href")), true, nil
	default:
		return "", false, &AmbiguousReferenceError{ID: id, Count: len(nodes)}
	}
}

// AbsPathFromID is PathFromID resolved against the package document.
func (m *Manifest) AbsPathFromID(id string) (string, bool, error) {
	p, ok, err := m.PathFromID(id)
	if err != nil || !ok {
		return "", false, err
	}
	return pathcodec.Resolve(m.doc.Path(), p), true, nil
}

// RelPath converts a package-absolute path into one relative to the
// package document.
func (m *Manifest) RelPath(absPath string) string {
	return pathcodec.Rel(m.doc.Path(), absPath)
}

// IDForPath returns the id of the entry whose href equals p.
func (m *Manifest) IDForPath(p string) (string, bool) {
	node := m.nodeForPath(p)
	if node == nil {
		return "", false
	}
	return node.SelectAttr("id"), true
}

func (m *Manifest) IDForAbsPath(absPath string) (string, bool) {
	return m.IDForPath(m.RelPath(absPath))
}

// ItemForPath returns the classified item whose decoded href equals the
// decoded path p.
func (m *Manifest) ItemForPath(p string) (Item, bool) {
	node := m.nodeForPath(p)
	if node == nil {
		return nil, false
	}
	return m.newItem(m.entryFor(node)), true
}

func (m *Manifest) ItemForAbsPath(absPath string) (Item, bool) {
	return m.ItemForPath(m.RelPath(absPath))
}

// Document returns the shared document context.
func (m *Manifest) Document() *Document {
	return m.doc
}

func (m *Manifest) nodes() []*xmlquery.Node {
	return xmlquery.QuerySelectorAll(m.doc.Root(), itemsExpr)
}

func (m *Manifest) nodeForPath(p string) *xmlquery.Node {
	p = pathcodec.Clean(p)
	for _, node := range m.nodes() {
		if decodeHref(node.SelectAttr("href")) == p {
			return node
		}
	}
	return nil
}

func (m *Manifest) entryFor(node *xmlquery.Node) Entry {
	id := node.SelectAttr("id")
	href := decodeHref(node.SelectAttr("href"))
	mediaType := node.SelectAttr("media-type")
	return Entry{
		ID:         id,
		Href:       href,
		MediaType:  mediaType,
		Properties: strings.Fields(node.SelectAttr("properties")),
		Type:       Classify(id, mediaType, href, m.spine.TocManifestID()),
		AbsPath:    pathcodec.Resolve(m.doc.Path(), href),
	}
}

func (m *Manifest) newItem(e Entry) Item {
	if m.factory == nil {
		return NewBasicItem(e)
	}
	return m.factory(m, e)
}

func decodeHref(href string) string {
	return pathcodec.Clean(pathcodec.Unescape(href))
}

func hasType(types []ItemType, t ItemType) bool {
	if len(types) == 0 {
		return true
	}
	for _, want := range types {
		if want == t {
			return true
		}
	}
	return false
}
