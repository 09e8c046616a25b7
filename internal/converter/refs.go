package converter

import (
	"strings"

	"github.com/yuanying/epubnorm/internal/opf"
	"github.com/yuanying/epubnorm/internal/pathcodec"
)

// refRewriter maps references found in the content of one manifest item to
// the flattened location of their targets.
type refRewriter struct {
	manifest *opf.Manifest
	self     opf.Item
	base     string // hashed path of self
}

func newRefRewriter(m *opf.Manifest, self opf.Item) *refRewriter {
	return &refRewriter{
		manifest: m,
		self:     self,
		base:     self.NormalizedHashedPath(""),
	}
}

// rewrite returns the replacement for ref and whether ref names a manifest
// item. External URLs, data URIs, pure fragments and paths outside the
// manifest are reported as not rewritten.
func (r *refRewriter) rewrite(ref string) (string, bool) {
	trimmed := strings.TrimSpace(ref)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") || pathcodec.IsExternal(trimmed) {
		return ref, false
	}

	p, anchor := pathcodec.SplitAnchor(trimmed)
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return ref, false
	}

	abs := pathcodec.Resolve(r.self.AbsPath(), pathcodec.Unescape(p))
	target, ok := r.manifest.ItemForAbsPath(abs)
	if !ok {
		return ref, false
	}

	rel := pathcodec.Escape(target.NormalizedHashedPath(r.base))
	return pathcodec.JoinAnchor(rel, anchor), true
}
