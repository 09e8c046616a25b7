package opf

import (
	"strings"

	"github.com/antchfx/xmlquery"
)

// SpineEntry is an itemref of the spine.
type SpineEntry struct {
	IDRef  string
	Linear bool
}

// Spine is a read-only view of the reading order.
type Spine struct {
	doc      *Document
	manifest *Manifest
}

// Items resolves the spine's itemrefs through the manifest, in reading
// order. Itemrefs whose id matches no manifest entry are skipped.
func (s *Spine) Items() ([]Item, error) {
	var items []Item
	for _, e := range s.Entries() {
		if e.IDRef == "" {
			continue
		}
		item, ok, err := s.manifest.Item(e.IDRef)
		if err != nil {
			return nil, err
		}
		if !ok {
			s.manifest.logger.Debug("skipping dangling itemref", "idref", e.IDRef)
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// Entries returns the raw itemrefs in document order.
func (s *Spine) Entries() []SpineEntry {
	nodes := xmlquery.QuerySelectorAll(s.doc.Root(), itemrefsExpr)
	entries := make([]SpineEntry, 0, len(nodes))
	for _, n := range nodes {
		entries = append(entries, SpineEntry{
			IDRef:  strings.TrimSpace(n.SelectAttr("idref")),
			Linear: n.SelectAttr("linear") != "no",
		})
	}
	return entries
}

// TocManifestID returns the manifest id named by the spine's toc
// attribute, or "" when there is none.
func (s *Spine) TocManifestID() string {
	n := xmlquery.QuerySelector(s.doc.Root(), spineExpr)
	if n == nil {
		return ""
	}
	return strings.TrimSpace(n.SelectAttr("toc"))
}

// Toc returns the manifest item designated as the table of contents.
func (s *Spine) Toc() (Item, bool, error) {
	id := s.TocManifestID()
	if id == "" {
		return nil, false, nil
	}
	return s.manifest.Item(id)
}

func (s *Spine) String() string {
	return outerXML(xmlquery.QuerySelector(s.doc.Root(), spineExpr))
}
