package converter

import (
	"fmt"
	"regexp"
)

// cssURLRe matches url() tokens, quoted or not.
var cssURLRe = regexp.MustCompile(`(?i)url\(\s*(?:"([^"]*)"|'([^']*)'|([^)\s'"]*))\s*\)`)

// cssImportRe matches @import rules given as a bare string.
var cssImportRe = regexp.MustCompile(`(?i)@import\s+(?:"([^"]*)"|'([^']*)')`)

// CSSItem is a stylesheet.
type CSSItem struct {
	itemBase
}

// Normalize rewrites url() and @import references to the flattened
// location of their targets.
func (i *CSSItem) Normalize() error {
	if i.preserved {
		i.logger.Debug("preserving content")
		return nil
	}

	data, err := i.read()
	if err != nil {
		return err
	}

	out, changed := RewriteCSS(string(data), i.rewriter().rewrite)
	if !changed {
		return nil
	}
	i.logger.Debug("rewrote references")
	if err := i.write([]byte(out)); err != nil {
		return fmt.Errorf("failed to save stylesheet: %w", err)
	}
	return nil
}

// RewriteCSS applies rewrite to every url() and @import reference of css.
// Quoting is kept as written. It reports whether anything changed.
func RewriteCSS(css string, rewrite func(string) (string, bool)) (string, bool) {
	changed := false

	replace := func(re *regexp.Regexp) func(string) string {
		return func(match string) string {
			m := re.FindStringSubmatchIndex(match)
			for g := 1; g < len(m)/2; g++ {
				start, end := m[2*g], m[2*g+1]
				if start < 0 {
					continue
				}
				ref := match[start:end]
				v, ok := rewrite(ref)
				if !ok || v == ref {
					return match
				}
				changed = true
				return match[:start] + v + match[end:]
			}
			return match
		}
	}

	out := cssURLRe.ReplaceAllStringFunc(css, replace(cssURLRe))
	out = cssImportRe.ReplaceAllStringFunc(out, replace(cssImportRe))
	return out, changed
}
