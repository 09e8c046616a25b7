package opf

import (
	"path"
	"strings"
)

// CoverInfo holds information about the detected cover image.
type CoverInfo struct {
	ManifestID      string
	Href            string
	MediaType       string
	DetectionMethod string // "properties", "meta", "guide", "filename"
}

// DetectCover detects the cover image of the package using multiple methods.
// Methods are tried in priority order:
//  1. properties="cover-image" (EPUB 3.0)
//  2. meta name="cover" (EPUB 2.0)
//  3. guide type="cover" (matched to image manifest items)
//  4. filename pattern (basename contains "cover", case-insensitive, SVG excluded)
//
// Returns nil if no cover image is found.
func DetectCover(pkg *Package, md Metadata) *CoverInfo {
	entries := pkg.Manifest.Entries()

	for _, e := range entries {
		for _, prop := range e.Properties {
			if prop == "cover-image" {
				return coverInfo(e, "properties")
			}
		}
	}

	if md.CoverID != "" {
		for _, e := range entries {
			if e.ID == md.CoverID {
				return coverInfo(e, "meta")
			}
		}
	}

	for _, ref := range pkg.Guide.Entries() {
		if ref.Type != "cover" {
			continue
		}
		for _, e := range entries {
			if isRasterImage(e) && e.Href == ref.Href {
				return coverInfo(e, "guide")
			}
		}
		// Guide points to a non-image, fall through to the filename check
	}

	for _, e := range entries {
		if !isRasterImage(e) {
			continue
		}
		if strings.Contains(strings.ToLower(path.Base(e.Href)), "cover") {
			return coverInfo(e, "filename")
		}
	}

	return nil
}

func coverInfo(e Entry, method string) *CoverInfo {
	return &CoverInfo{
		ManifestID:      e.ID,
		Href:            e.Href,
		MediaType:       e.MediaType,
		DetectionMethod: method,
	}
}

// isRasterImage reports whether e is an image other than SVG.
func isRasterImage(e Entry) bool {
	if e.MediaType == "image/svg+xml" || strings.EqualFold(path.Ext(e.Href), ".svg") {
		return false
	}
	return e.Type == ItemImage
}
