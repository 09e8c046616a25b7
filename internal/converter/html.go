package converter

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

const (
	xhtmlNamespace = "http://www.w3.org/1999/xhtml"
	xlinkNamespace = "http://www.w3.org/1999/xlink"
)

// ErrMalformedXHTML is returned by RewriteXHTML for content that is not
// well-formed XML.
var ErrMalformedXHTML = errors.New("content is not well-formed XML")

// prologRe matches the byte order mark, XML declaration and doctype that
// precede the root element. They are kept verbatim.
var prologRe = regexp.MustCompile(`(?is)^(?:\x{FEFF})?\s*(?:<\?xml.*?\?>\s*)?(?:<!DOCTYPE[^>]*>\s*)?`)

var xhtmlElementsExpr = xpath.MustCompile(`//*`)

// voidElements are the XHTML elements written as empty-element tags.
// Every other empty XHTML element gets an end tag so HTML parsers read
// the same tree.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", "]]>", "]]&gt;")
	attrEscaper = strings.NewReplacer(
		"&", "&amp;", "<", "&lt;", `"`, "&quot;",
		"\t", "&#x9;", "\n", "&#xA;", "\r", "&#xD;",
	)
)

// htmlRefAttrs lists the attributes holding references in documents parsed
// as HTML. xlink:href inside SVG is parsed as Namespace "xlink", Key "href".
var htmlRefAttrs = map[string]bool{
	"href":   true,
	"src":    true,
	"poster": true,
}

// HTMLItem is an XHTML content document.
type HTMLItem struct {
	itemBase
}

// Normalize rewrites links, sources and stylesheet urls that point at
// manifest items to the flattened location of their targets.
func (i *HTMLItem) Normalize() error {
	if i.preserved {
		i.logger.Debug("preserving content")
		return nil
	}

	data, err := i.read()
	if err != nil {
		return err
	}

	rewrite := i.rewriter().rewrite
	var (
		out     []byte
		changed bool
	)
	if i.MediaType() == "text/html" {
		out, changed, err = RewriteHTML(data, rewrite)
	} else {
		out, changed, err = RewriteXHTML(data, rewrite)
		if errors.Is(err, ErrMalformedXHTML) {
			i.logger.Warn("rewriting as HTML", "error", err)
			out, changed, err = RewriteHTML(data, rewrite)
		}
	}
	if err != nil {
		return fmt.Errorf("failed to rewrite %s: %w", i.AbsPath(), err)
	}
	if !changed {
		return nil
	}
	i.logger.Debug("rewrote references")
	return i.write(out)
}

// RewriteXHTML applies rewrite to every reference of an XHTML document:
// href, src, poster and xlink:href attributes, inline style attributes and
// <style> blocks. Only those values change; elements, text, comments and
// CDATA sections are written back as parsed. The document is
// re-serialized only when something changed.
func RewriteXHTML(data []byte, rewrite func(string) (string, bool)) ([]byte, bool, error) {
	prolog := prologRe.Find(data)
	body := data[len(prolog):]

	doc, err := xmlquery.ParseWithOptions(bytes.NewReader(body), xmlquery.ParserOptions{
		Decoder: &xmlquery.DecoderOptions{Strict: true, Entity: xml.HTMLEntity},
	})
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrMalformedXHTML, err)
	}

	changed := false
	for _, n := range xmlquery.QuerySelectorAll(doc, xhtmlElementsExpr) {
		for idx, a := range n.Attr {
			switch {
			case isXHTMLRefAttr(a):
				if v, ok := rewrite(a.Value); ok && v != a.Value {
					n.Attr[idx].Value = v
					changed = true
				}
			case a.Name.Space == "" && a.Name.Local == "style":
				if v, ok := RewriteCSS(a.Value, rewrite); ok {
					n.Attr[idx].Value = v
					changed = true
				}
			}
		}

		if n.Data != "style" {
			continue
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != xmlquery.TextNode && c.Type != xmlquery.CharDataNode {
				continue
			}
			if v, ok := RewriteCSS(c.Data, rewrite); ok {
				c.Data = v
				changed = true
			}
		}
	}

	if !changed {
		return data, false, nil
	}

	var buf bytes.Buffer
	buf.Grow(len(data))
	buf.Write(prolog)
	// Nodes ahead of the root element end up as siblings of the document
	// node when the parsed body has no XML declaration.
	for n := doc.NextSibling; n != nil; n = n.NextSibling {
		writeXHTML(&buf, n)
	}
	for n := doc.FirstChild; n != nil; n = n.NextSibling {
		writeXHTML(&buf, n)
	}
	return buf.Bytes(), true, nil
}

func isXHTMLRefAttr(a xmlquery.Attr) bool {
	switch a.Name.Local {
	case "href":
		return a.Name.Space == "" || a.Name.Space == "xlink" || a.NamespaceURI == xlinkNamespace
	case "src", "poster":
		return a.Name.Space == ""
	}
	return false
}

// writeXHTML serializes n escaping only what XML requires. Declaration
// nodes are skipped; the parsed body never carries a real one.
func writeXHTML(buf *bytes.Buffer, n *xmlquery.Node) {
	switch n.Type {
	case xmlquery.TextNode:
		textEscaper.WriteString(buf, n.Data)
	case xmlquery.CharDataNode:
		buf.WriteString("<![CDATA[" + n.Data + "]]>")
	case xmlquery.CommentNode:
		buf.WriteString("<!--" + n.Data + "-->")
	case xmlquery.NotationNode:
		buf.WriteString("<!" + n.Data + ">")
	case xmlquery.ProcessingInstruction:
		buf.WriteString("<?" + n.ProcInst.Target)
		if n.ProcInst.Inst != "" {
			buf.WriteString(" " + n.ProcInst.Inst)
		}
		buf.WriteString("?>")
	case xmlquery.ElementNode:
		name := n.Data
		if n.Prefix != "" {
			name = n.Prefix + ":" + n.Data
		}
		buf.WriteString("<" + name)
		for _, a := range n.Attr {
			buf.WriteByte(' ')
			if a.Name.Space != "" {
				buf.WriteString(a.Name.Space + ":")
			}
			buf.WriteString(a.Name.Local + `="`)
			attrEscaper.WriteString(buf, a.Value)
			buf.WriteByte('"')
		}
		if n.FirstChild == nil && (voidElements[n.Data] || !inXHTMLNamespace(n)) {
			buf.WriteString("/>")
			return
		}
		buf.WriteByte('>')
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			writeXHTML(buf, c)
		}
		buf.WriteString("</" + name + ">")
	}
}

func inXHTMLNamespace(n *xmlquery.Node) bool {
	return n.NamespaceURI == "" || n.NamespaceURI == xhtmlNamespace
}

// RewriteHTML is RewriteXHTML for documents in HTML syntax. It parses
// with an HTML5 parser, so it is only used for text/html items and for
// content that is not well-formed XML.
func RewriteHTML(data []byte, rewrite func(string) (string, bool)) ([]byte, bool, error) {
	prolog := prologRe.Find(data)
	body := data[len(prolog):]

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("failed to parse HTML: %w", err)
	}

	changed := false
	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		node := s.Get(0)
		for idx, a := range node.Attr {
			switch {
			case htmlRefAttrs[a.Key]:
				if v, ok := rewrite(a.Val); ok && v != a.Val {
					node.Attr[idx].Val = v
					changed = true
				}
			case a.Key == "style" && a.Namespace == "":
				if v, ok := RewriteCSS(a.Val, rewrite); ok {
					node.Attr[idx].Val = v
					changed = true
				}
			}
		}
	})

	doc.Find("style").Each(func(_ int, s *goquery.Selection) {
		if v, ok := RewriteCSS(s.Text(), rewrite); ok {
			s.SetText(v)
			changed = true
		}
	})

	if !changed {
		return data, false, nil
	}

	rendered, err := goquery.OuterHtml(doc.Find("html").First())
	if err != nil {
		return nil, false, fmt.Errorf("failed to render HTML: %w", err)
	}

	var buf bytes.Buffer
	buf.Grow(len(prolog) + len(rendered) + 1)
	buf.Write(prolog)
	buf.WriteString(rendered)
	buf.WriteByte('\n')
	return buf.Bytes(), true, nil
}
