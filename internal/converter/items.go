package converter

import (
	"fmt"
	"log/slog"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/yuanying/epubnorm/internal/opf"
)

// ItemOptions configures the items built by NewItemFactory.
type ItemOptions struct {
	Images ImageOptions
	// Preserve lists doublestar patterns matched against package-absolute
	// paths. Matching items keep their content as is but are still moved.
	Preserve []string
	Logger   *slog.Logger
}

// NewItemFactory returns an opf.ItemFactory producing content-aware items.
func NewItemFactory(opts ItemOptions) opf.ItemFactory {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	optimizer := NewImageOptimizer(opts.Images)

	return func(m *opf.Manifest, e opf.Entry) opf.Item {
		base := itemBase{
			BasicItem: opf.NewBasicItem(e),
			manifest:  m,
			logger:    logger.With("id", e.ID, "path", e.AbsPath),
			preserved: isPreserved(opts.Preserve, e.AbsPath),
		}
		switch e.Type {
		case opf.ItemHTML:
			return &HTMLItem{itemBase: base}
		case opf.ItemCSS:
			return &CSSItem{itemBase: base}
		case opf.ItemImage:
			return &ImageItem{itemBase: base, optimizer: optimizer, enabled: opts.Images.Enabled}
		case opf.ItemToc:
			return &TocItem{itemBase: base}
		default:
			return &MiscItem{itemBase: base}
		}
	}
}

// itemBase carries what every content-aware item needs.
type itemBase struct {
	*opf.BasicItem
	manifest  *opf.Manifest
	logger    *slog.Logger
	preserved bool
}

// Preserved reports whether the item's content is left untouched.
func (b *itemBase) Preserved() bool {
	return b.preserved
}

func (b *itemBase) read() ([]byte, error) {
	data, err := b.manifest.Document().Storage().ReadFile(b.AbsPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", b.AbsPath(), err)
	}
	return data, nil
}

func (b *itemBase) write(data []byte) error {
	if err := b.manifest.Document().Storage().WriteFile(b.AbsPath(), data); err != nil {
		return fmt.Errorf("failed to write %s: %w", b.AbsPath(), err)
	}
	return nil
}

func (b *itemBase) rewriter() *refRewriter {
	return newRefRewriter(b.manifest, b)
}

// MiscItem is a manifest entry whose content is never touched: fonts,
// audio, video and anything unclassified.
type MiscItem struct {
	itemBase
}

func (i *MiscItem) Normalize() error {
	return nil
}

func isPreserved(patterns []string, absPath string) bool {
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, absPath); err == nil && ok {
			return true
		}
	}
	return false
}
