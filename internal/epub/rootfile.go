package epub

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

const (
	// MimetypeName is the first entry of every EPUB archive.
	MimetypeName = "mimetype"

	// ContainerPath locates the package document(s) of an EPUB.
	ContainerPath = "META-INF/container.xml"

	epubMimetype    = "application/epub+zip"
	opfMediaType    = "application/oebps-package+xml"
	containerFormat = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="%s" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>
`
)

var rootfileExpr = xpath.MustCompile(`//*[local-name()='rootfiles']/*[local-name()='rootfile']`)

// findRootfile returns the rootfile element naming the OPF package
// document: the first one with the OPF media type (or none), otherwise the
// first one.
func findRootfile(doc *xmlquery.Node) *xmlquery.Node {
	nodes := xmlquery.QuerySelectorAll(doc, rootfileExpr)
	for _, n := range nodes {
		if mt := n.SelectAttr("media-type"); mt == opfMediaType || mt == "" {
			return n
		}
	}
	if len(nodes) > 0 {
		return nodes[0]
	}
	return nil
}

// parseRootfile extracts the OPF path from container.xml content.
func parseRootfile(content []byte) (string, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("failed to parse container.xml: %w", err)
	}
	n := findRootfile(doc)
	if n == nil || n.SelectAttr("full-path") == "" {
		return "", ErrOPFPathNotFound
	}
	return normalizePath(n.SelectAttr("full-path")), nil
}

// rewriteRootfile points the OPF rootfile of container.xml at opfPath.
// Missing or unusable content is replaced by a minimal container.xml.
func rewriteRootfile(content []byte, opfPath string) []byte {
	if len(content) > 0 {
		if doc, err := xmlquery.Parse(bytes.NewReader(content)); err == nil {
			if n := findRootfile(doc); n != nil {
				n.SetAttr("full-path", opfPath)
				return []byte(doc.OutputXML(true))
			}
		}
	}
	return []byte(fmt.Sprintf(containerFormat, html.EscapeString(opfPath)))
}

// normalizePath normalizes file paths (removes ./ prefix)
func normalizePath(path string) string {
	path = strings.TrimPrefix(path, "./")
	return path
}
