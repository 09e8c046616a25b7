package converter

import (
	"bytes"
	"fmt"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

// ncxContentExpr selects the content elements of navigation, page and
// list targets of an NCX document.
var ncxContentExpr = xpath.MustCompile(`//*[local-name()='navPoint' or local-name()='pageTarget' or local-name()='navTarget']/*[local-name()='content']`)

// TocItem is the NCX navigation document named by the spine's toc
// attribute. It is normalized separately from the other manifest items,
// before the manifest is flattened.
type TocItem struct {
	itemBase
}

// Normalize rewrites the src of every navigation target.
func (i *TocItem) Normalize() error {
	if i.preserved {
		i.logger.Debug("preserving content")
		return nil
	}

	data, err := i.read()
	if err != nil {
		return err
	}

	out, changed, err := RewriteNCX(data, i.rewriter().rewrite)
	if err != nil {
		return fmt.Errorf("failed to rewrite %s: %w", i.AbsPath(), err)
	}
	if !changed {
		return nil
	}
	i.logger.Debug("rewrote navigation targets")
	return i.write(out)
}

// RewriteNCX applies rewrite to the content/@src of every navPoint,
// pageTarget and navTarget.
func RewriteNCX(data []byte, rewrite func(string) (string, bool)) ([]byte, bool, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, false, fmt.Errorf("failed to parse NCX: %w", err)
	}

	changed := false
	for _, n := range xmlquery.QuerySelectorAll(doc, ncxContentExpr) {
		src := n.SelectAttr("src")
		if v, ok := rewrite(src); ok && v != src {
			n.SetAttr("src", v)
			changed = true
		}
	}
	if !changed {
		return data, false, nil
	}
	return []byte(doc.OutputXML(true)), true, nil
}
