package opf

import (
	"log/slog"

	"github.com/antchfx/xmlquery"
	"github.com/yuanying/epubnorm/internal/pathcodec"
)

// GuideReference is a landmark of the optional guide section.
type GuideReference struct {
	Type   string
	Title  string
	Href   string // decoded path without the anchor
	Anchor string
}

// GuideState tracks the progress of Guide.Normalize.
type GuideState int

const (
	GuideUnprocessed GuideState = iota
	GuidePathsEscaped
	GuideResolved
	GuidePersisted
)

func (s GuideState) String() string {
	switch s {
	case GuidePathsEscaped:
		return "paths-escaped"
	case GuideResolved:
		return "resolved"
	case GuidePersisted:
		return "persisted"
	default:
		return "unprocessed"
	}
}

// Guide rewrites the landmark references of the package document.
type Guide struct {
	doc      *Document
	manifest *Manifest
	logger   *slog.Logger
	state    GuideState
}

// State returns how far the last call to Normalize got.
func (g *Guide) State() GuideState {
	return g.state
}

// Entries returns the guide references in document order.
func (g *Guide) Entries() []GuideReference {
	nodes := g.nodes()
	refs := make([]GuideReference, 0, len(nodes))
	for _, n := range nodes {
		p, anchor := pathcodec.SplitAnchor(n.SelectAttr("href"))
		refs = append(refs, GuideReference{
			Type:   n.SelectAttr("type"),
			Title:  n.SelectAttr("title"),
			Href:   decodeHref(p),
			Anchor: anchor,
		})
	}
	return refs
}

// Standardize re-escapes every reference href without resolving it.
func (g *Guide) Standardize() error {
	nodes := g.nodes()
	if len(nodes) == 0 {
		return nil
	}
	g.escapePaths(nodes)
	return g.doc.Save()
}

// Normalize points every reference at the flattened location of its target
// and keeps its anchor. It must run after Manifest.Normalize. A guide that
// is missing or empty is left alone.
//
// Each step is a full pass over all references: escape, resolve, persist.
// A reference that does not resolve aborts the resolve pass with
// *ReferenceError before anything is written.
func (g *Guide) Normalize() error {
	g.state = GuideUnprocessed
	nodes := g.nodes()
	if len(nodes) == 0 {
		g.logger.Debug("no guide references to normalize")
		return nil
	}

	g.escapePaths(nodes)
	g.state = GuidePathsEscaped

	hrefs := make([]string, len(nodes))
	for i, n := range nodes {
		href := n.SelectAttr("href")
		p, anchor := pathcodec.SplitAnchor(href)
		item, ok := g.resolve(pathcodec.Unescape(p))
		if !ok {
			return &ReferenceError{Section: "guide", Href: href}
		}
		hrefs[i] = pathcodec.JoinAnchor(pathcodec.Escape(item.NormalizedHashedPath(g.doc.Path())), anchor)
	}
	g.state = GuideResolved

	for i, n := range nodes {
		n.SetAttr("href", hrefs[i])
	}
	if err := g.doc.Save(); err != nil {
		return err
	}
	g.state = GuidePersisted
	return nil
}

func (g *Guide) String() string {
	return outerXML(xmlquery.QuerySelector(g.doc.Root(), guideExpr))
}

func (g *Guide) nodes() []*xmlquery.Node {
	return xmlquery.QuerySelectorAll(g.doc.Root(), referenceExpr)
}

func (g *Guide) escapePaths(nodes []*xmlquery.Node) {
	for _, n := range nodes {
		p, anchor := pathcodec.SplitAnchor(n.SelectAttr("href"))
		n.SetAttr("href", pathcodec.JoinAnchor(pathcodec.Normalize(p), anchor))
	}
}

// resolve finds the manifest item a guide path points at. Guide hrefs are
// still relative to the document's original location and name the files'
// original paths, so when the manifest has already been flattened the
// target is found through its hashed location.
func (g *Guide) resolve(p string) (Item, bool) {
	if item, ok := g.manifest.ItemForPath(p); ok {
		return item, true
	}
	abs := pathcodec.Resolve(g.doc.OriginalPath(), p)
	return g.manifest.ItemForAbsPath(HashedPath(abs))
}
