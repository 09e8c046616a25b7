package opf

import "log/slog"

// Options configures the views built by New.
type Options struct {
	// Factory builds manifest items. BasicItem is used when nil.
	Factory ItemFactory
	Logger  *slog.Logger
}

// Package groups the manifest, spine and guide views of one document.
type Package struct {
	Document *Document
	Manifest *Manifest
	Spine    *Spine
	Guide    *Guide
}

// New builds the manifest, spine and guide views over doc.
func New(doc *Document, opts Options) *Package {
	logger := discardLogger(opts.Logger)

	m := &Manifest{
		doc:     doc,
		factory: opts.Factory,
		logger:  logger,
	}
	s := &Spine{doc: doc, manifest: m}
	m.spine = s

	return &Package{
		Document: doc,
		Manifest: m,
		Spine:    s,
		Guide:    &Guide{doc: doc, manifest: m, logger: logger},
	}
}
