package converter

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/png"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
)

const (
	DefaultMaxImageWidth = 1600
	DefaultJPEGQuality   = 85
	defaultMaxPixels     = 100 * 1000 * 1000 // 100 megapixels
)

// ImageOptions configures image recompression.
type ImageOptions struct {
	Enabled     bool
	MaxWidth    int
	JPEGQuality int
}

// ImageOptimizer downscales oversized raster images.
type ImageOptimizer struct {
	MaxWidth    int
	JPEGQuality int
	MaxPixels   int // Total pixel count limit for decode (width * height)
}

// OptimizedImage holds the image data to store and what was detected.
// Warning is set when the input was kept because it could not be processed.
type OptimizedImage struct {
	Data    []byte
	Width   int
	Height  int
	Format  string
	Changed bool
	Warning string
}

// NewImageOptimizer creates an image optimizer with defaults.
func NewImageOptimizer(opts ImageOptions) *ImageOptimizer {
	maxWidth := opts.MaxWidth
	if maxWidth <= 0 {
		maxWidth = DefaultMaxImageWidth
	}

	quality := opts.JPEGQuality
	if quality <= 0 {
		quality = DefaultJPEGQuality
	}
	if quality > 100 {
		quality = 100
	}

	return &ImageOptimizer{
		MaxWidth:    maxWidth,
		JPEGQuality: quality,
		MaxPixels:   defaultMaxPixels,
	}
}

// Optimize downscales input when it is wider than MaxWidth and re-encodes
// it in its own format. The original bytes are returned when the image is
// small enough, animated, vector, undecodable, or when the re-encoded data
// is not smaller. Only encoding errors return a non-nil error.
func (o *ImageOptimizer) Optimize(input []byte) (OptimizedImage, error) {
	out := OptimizedImage{Data: input}

	mt := mimetype.Detect(input)
	out.Format = imageFormat(mt)
	if out.Format == "" {
		if mt.Is("image/svg+xml") {
			out.Format = "svg"
		} else {
			out.Warning = fmt.Sprintf("unsupported image format %s", mt.String())
		}
		return out, nil
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(input))
	if err != nil {
		out.Warning = fmt.Sprintf("image decode failed: %v", err)
		return out, nil
	}
	out.Width, out.Height = cfg.Width, cfg.Height

	pixels := uint64(cfg.Width) * uint64(cfg.Height)
	if o.MaxPixels > 0 && pixels > uint64(o.MaxPixels) {
		out.Warning = fmt.Sprintf("image too large to decode: %dx%d (%d pixels)", cfg.Width, cfg.Height, pixels)
		return out, nil
	}
	if o.MaxWidth <= 0 || cfg.Width <= o.MaxWidth {
		return out, nil
	}

	if out.Format == "gif" {
		animated, err := isAnimatedGIF(input)
		if err == nil && animated {
			return out, nil
		}
	}

	src, err := imaging.Decode(bytes.NewReader(input))
	if err != nil {
		out.Warning = fmt.Sprintf("image decode failed: %v", err)
		return out, nil
	}

	processed := imaging.Resize(src, o.MaxWidth, 0, imaging.Lanczos)
	data, err := o.encode(processed, out.Format)
	if err != nil {
		return out, fmt.Errorf("%s encode failed: %w", out.Format, err)
	}
	if len(data) >= len(input) {
		return out, nil
	}

	out.Data = data
	out.Width = processed.Bounds().Dx()
	out.Height = processed.Bounds().Dy()
	out.Changed = true
	return out, nil
}

func (o *ImageOptimizer) encode(img image.Image, format string) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch format {
	case "jpeg":
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(o.JPEGQuality))
	case "png":
		err = imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression))
	case "gif":
		err = imaging.Encode(&buf, img, imaging.GIF)
	default:
		err = fmt.Errorf("unsupported format %q", format)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// imageFormat maps a sniffed MIME type to the raster formats that can be
// re-encoded. Everything else yields "".
func imageFormat(mt *mimetype.MIME) string {
	switch {
	case mt.Is("image/jpeg"):
		return "jpeg"
	case mt.Is("image/png"):
		return "png"
	case mt.Is("image/gif"):
		return "gif"
	default:
		return ""
	}
}

func isAnimatedGIF(data []byte) (bool, error) {
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return false, err
	}
	return len(g.Image) > 1, nil
}

// ImageItem is a raster or vector image.
type ImageItem struct {
	itemBase
	optimizer *ImageOptimizer
	enabled   bool
}

// Normalize recompresses the image when image processing is enabled.
func (i *ImageItem) Normalize() error {
	if !i.enabled || i.preserved {
		return nil
	}

	data, err := i.read()
	if err != nil {
		return err
	}

	result, err := i.optimizer.Optimize(data)
	if err != nil {
		return fmt.Errorf("failed to optimize %s: %w", i.AbsPath(), err)
	}
	if result.Warning != "" {
		i.logger.Warn("keeping original image", "reason", result.Warning)
		return nil
	}
	if want := strings.TrimPrefix(strings.ToLower(i.MediaType()), "image/"); want != "" && result.Format != "" && !sameFormat(want, result.Format) {
		i.logger.Warn("image content does not match media type", "media_type", i.MediaType(), "detected", result.Format)
	}
	if !result.Changed {
		return nil
	}

	i.logger.Debug("recompressed image",
		"before", len(data), "after", len(result.Data),
		"width", result.Width, "height", result.Height)
	return i.write(result.Data)
}

func sameFormat(mediaSubtype, format string) bool {
	switch mediaSubtype {
	case "jpeg", "jpg":
		return format == "jpeg"
	case "svg+xml":
		return format == "svg"
	default:
		return mediaSubtype == format
	}
}
