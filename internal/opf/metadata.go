package opf

import (
	"strings"

	"github.com/antchfx/xmlquery"
)

// Metadata represents the metadata section of the package document
type Metadata struct {
	Title       string
	Creators    []Creator
	Language    string
	Identifier  string
	Publisher   string
	Date        string
	Description string
	Subjects    []string
	Rights      string
	CoverID     string // EPUB 2.0 cover image manifest item ID (from meta name="cover")
}

// Creator represents a creator (author, editor, etc.) of the book
type Creator struct {
	Name string
	Role string // e.g., "aut" for author, "edt" for editor
	Lang string // xml:lang attribute
}

// ReadMetadata reads the metadata section of doc.
func ReadMetadata(doc *Document) Metadata {
	md := Metadata{
		Subjects: []string{},
		Creators: []Creator{},
	}

	meta := xmlquery.QuerySelector(doc.Root(), metadataExpr)
	if meta == nil {
		return md
	}

	uniqueID := ""
	if pkg := meta.Parent; pkg != nil {
		uniqueID = pkg.SelectAttr("unique-identifier")
	}

	creatorIDs := make(map[string]int)
	var identifiers []*xmlquery.Node
	var metas []*xmlquery.Node

	for n := meta.FirstChild; n != nil; n = n.NextSibling {
		if n.Type != xmlquery.ElementNode {
			continue
		}
		text := strings.TrimSpace(n.InnerText())

		switch n.Data {
		case "title":
			setFirst(&md.Title, text)
		case "language":
			setFirst(&md.Language, text)
		case "publisher":
			setFirst(&md.Publisher, text)
		case "date":
			setFirst(&md.Date, text)
		case "description":
			setFirst(&md.Description, text)
		case "rights":
			setFirst(&md.Rights, text)
		case "subject":
			md.Subjects = append(md.Subjects, text)
		case "identifier":
			identifiers = append(identifiers, n)
		case "creator":
			if id := n.SelectAttr("id"); id != "" {
				creatorIDs["#"+id] = len(md.Creators)
			}
			md.Creators = append(md.Creators, Creator{
				Name: text,
				Role: attrLocal(n, "role"),
				Lang: attrLocal(n, "lang"),
			})
		case "meta":
			metas = append(metas, n)
		}
	}

	// Identifier (the one marked as unique-identifier, else the first one)
	for _, n := range identifiers {
		if uniqueID != "" && n.SelectAttr("id") == uniqueID {
			md.Identifier = strings.TrimSpace(n.InnerText())
			break
		}
	}
	if md.Identifier == "" && len(identifiers) > 0 {
		md.Identifier = strings.TrimSpace(identifiers[0].InnerText())
	}

	for _, n := range metas {
		// EPUB 2.0 cover
		if n.SelectAttr("name") == "cover" && md.CoverID == "" {
			md.CoverID = n.SelectAttr("content")
		}

		// EPUB 3.0 creator role refinements
		if n.SelectAttr("property") == "role" {
			if idx, ok := creatorIDs[n.SelectAttr("refines")]; ok {
				if v := strings.TrimSpace(n.InnerText()); v != "" {
					md.Creators[idx].Role = v
				} else {
					md.Creators[idx].Role = n.SelectAttr("content")
				}
			}
		}
	}

	return md
}

func setFirst(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}
