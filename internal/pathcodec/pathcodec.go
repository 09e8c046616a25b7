// Package pathcodec escapes, unescapes and resolves the relative hrefs stored
// in an EPUB package document.
//
// Hrefs are percent-escaped and relative to the directory of the document
// that contains them. Paths inside the package always use forward slashes.
package pathcodec

import (
	"net/url"
	"path"
	"strings"
)

// Escape percent-escapes every segment of p. Slashes are kept as separators.
func Escape(p string) string {
	if p == "" {
		return ""
	}
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

// Unescape decodes a percent-escaped path. A '+' is kept literally.
// If p contains a malformed escape sequence it is returned unchanged.
func Unescape(p string) string {
	decoded, err := url.PathUnescape(p)
	if err != nil {
		return p
	}
	return decoded
}

// Normalize decodes p and escapes it again, so already escaped and raw
// hrefs end up with identical escaping.
func Normalize(p string) string {
	return Escape(Unescape(p))
}

// SplitAnchor splits an href into its path and fragment identifier.
// The returned anchor does not include the '#'.
func SplitAnchor(href string) (p, anchor string) {
	if i := strings.IndexByte(href, '#'); i >= 0 {
		return href[:i], href[i+1:]
	}
	return href, ""
}

// JoinAnchor appends anchor to p as a fragment identifier when it is non-empty.
func JoinAnchor(p, anchor string) string {
	if anchor == "" {
		return p
	}
	return p + "#" + anchor
}

// Clean is path.Clean over slash-separated paths, except that the empty
// path stays empty.
func Clean(p string) string {
	if p == "" {
		return ""
	}
	return path.Clean(strings.ReplaceAll(p, `\`, "/"))
}

// Resolve resolves rel against the directory of docPath.
//
//	Resolve("OEBPS/text/ch1.xhtml", "../images/a.png") == "OEBPS/images/a.png"
func Resolve(docPath, rel string) string {
	if strings.HasPrefix(rel, "/") {
		return Clean(strings.TrimPrefix(rel, "/"))
	}
	return Clean(path.Join(path.Dir(docPath), rel))
}

// Rel returns target relative to the directory of docPath.
// An empty docPath yields target unchanged.
//
//	Rel("OEBPS/content.opf", "OEBPS/abc.png") == "abc.png"
//	Rel("OEBPS/text/ch1.xhtml", "OEBPS/abc.png") == "../abc.png"
func Rel(docPath, target string) string {
	target = Clean(target)
	if docPath == "" {
		return target
	}
	base := path.Dir(Clean(docPath))
	if base == "." {
		return target
	}

	baseParts := strings.Split(base, "/")
	targetParts := strings.Split(target, "/")

	common := 0
	for common < len(baseParts) && common < len(targetParts)-1 && baseParts[common] == targetParts[common] {
		common++
	}

	parts := make([]string, 0, len(baseParts)-common+len(targetParts)-common)
	for i := common; i < len(baseParts); i++ {
		parts = append(parts, "..")
	}
	parts = append(parts, targetParts[common:]...)
	return strings.Join(parts, "/")
}

// IsExternal reports whether href points outside the package: an absolute
// URL with a scheme, a protocol-relative URL, or a data URI.
func IsExternal(href string) bool {
	if strings.HasPrefix(href, "//") {
		return true
	}
	u, err := url.Parse(href)
	if err != nil {
		return false
	}
	return u.Scheme != ""
}
