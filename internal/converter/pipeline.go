package converter

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/yuanying/epubnorm/internal/epub"
	"github.com/yuanying/epubnorm/internal/opf"
)

// ErrNoOutput is returned when no output path was given.
var ErrNoOutput = errors.New("output path is required")

// NormalizeOptions holds options for the normalization pipeline.
type NormalizeOptions struct {
	InputPath  string
	OutputPath string
	// Extract writes an archive input as an unpacked directory.
	Extract  bool
	Images   ImageOptions
	Preserve []string
	Logger   *slog.Logger
}

// Summary describes a finished normalization.
type Summary struct {
	OutputPath string
	OPFPath    string
	Counts     map[opf.ItemType]int
}

// packageStorage is what the pipeline needs from epub.Container and epub.Dir.
type packageStorage interface {
	opf.Storage
	OPFPath() string
	SetRootfile(opfPath string) error
}

// Pipeline flattens an EPUB into content-addressed paths.
type Pipeline struct {
	Options NormalizeOptions
	logger  *slog.Logger
}

// NewPipeline creates a new normalization pipeline.
func NewPipeline(opts NormalizeOptions) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	opts.Logger = logger
	return &Pipeline{Options: opts, logger: logger}
}

// Normalize executes the pipeline. Archives are normalized in memory and
// written to OutputPath. Directories are copied to OutputPath and
// normalized there, or in place when OutputPath equals InputPath.
func (p *Pipeline) Normalize() (*Summary, error) {
	if p.Options.OutputPath == "" {
		return nil, ErrNoOutput
	}

	info, err := os.Stat(p.Options.InputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	if info.IsDir() {
		return p.normalizeDir()
	}
	return p.normalizeArchive()
}

func (p *Pipeline) normalizeArchive() (*Summary, error) {
	p.logger.Info("opening EPUB", "path", p.Options.InputPath)
	c, err := epub.Open(p.Options.InputPath)
	if err != nil {
		return nil, err
	}

	summary, err := p.run(c)
	if err != nil {
		return nil, err
	}

	if p.Options.Extract {
		p.logger.Info("extracting EPUB", "path", p.Options.OutputPath)
		err = c.Extract(p.Options.OutputPath)
	} else {
		p.logger.Info("writing EPUB", "path", p.Options.OutputPath)
		err = c.Save(p.Options.OutputPath)
	}
	if err != nil {
		return nil, err
	}
	return summary, nil
}

func (p *Pipeline) normalizeDir() (*Summary, error) {
	root := p.Options.OutputPath
	if !samePath(p.Options.InputPath, root) {
		p.logger.Info("copying EPUB directory", "from", p.Options.InputPath, "to", root)
		if err := epub.CopyDir(p.Options.InputPath, root); err != nil {
			return nil, err
		}
	}

	d, err := epub.OpenDir(root)
	if err != nil {
		return nil, err
	}
	return p.run(d)
}

func (p *Pipeline) run(store packageStorage) (*Summary, error) {
	doc, err := opf.LoadDocument(store, store.OPFPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load OPF: %w", err)
	}

	pkg := opf.New(doc, opf.Options{
		Factory: NewItemFactory(ItemOptions{
			Images:   p.Options.Images,
			Preserve: p.Options.Preserve,
			Logger:   p.logger,
		}),
		Logger: p.logger,
	})

	counts := make(map[opf.ItemType]int)
	for _, e := range pkg.Manifest.Entries() {
		counts[e.Type]++
	}

	if err := NormalizePackage(pkg, p.logger); err != nil {
		return nil, err
	}

	if err := store.SetRootfile(pkg.Document.Path()); err != nil {
		return nil, fmt.Errorf("failed to update container.xml: %w", err)
	}

	return &Summary{
		OutputPath: p.Options.OutputPath,
		OPFPath:    pkg.Document.Path(),
		Counts:     counts,
	}, nil
}

// NormalizePackage flattens pkg: the NCX is rewritten first, then the
// manifest is normalized and relocated, then the guide follows it.
func NormalizePackage(pkg *opf.Package, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	toc, ok, err := pkg.Spine.Toc()
	if err != nil {
		return fmt.Errorf("failed to resolve toc: %w", err)
	}
	switch {
	case ok:
		logger.Info("normalizing navigation", "path", toc.AbsPath())
		if err := toc.Normalize(); err != nil {
			return fmt.Errorf("failed to normalize toc: %w", err)
		}
	case pkg.Spine.TocManifestID() != "":
		logger.Warn("spine toc not found in manifest", "id", pkg.Spine.TocManifestID())
	}

	logger.Info("normalizing manifest", "items", len(pkg.Manifest.Entries()))
	if err := pkg.Manifest.Normalize(); err != nil {
		return fmt.Errorf("failed to normalize manifest: %w", err)
	}

	logger.Info("normalizing guide", "references", len(pkg.Guide.Entries()))
	if err := pkg.Guide.Normalize(); err != nil {
		return fmt.Errorf("failed to normalize guide: %w", err)
	}
	return nil
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}
