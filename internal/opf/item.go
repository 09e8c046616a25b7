package opf

import (
	"crypto/md5"
	"encoding/hex"
	"path"
	"regexp"
	"strings"

	"github.com/yuanying/epubnorm/internal/pathcodec"
)

// ItemType classifies a manifest entry.
type ItemType int

const (
	ItemMisc ItemType = iota
	ItemImage
	ItemCSS
	ItemHTML
	ItemToc
)

func (t ItemType) String() string {
	switch t {
	case ItemImage:
		return "image"
	case ItemCSS:
		return "css"
	case ItemHTML:
		return "html"
	case ItemToc:
		return "toc"
	default:
		return "misc"
	}
}

// Classify returns the type of a manifest entry. The first rule that
// matches wins: the spine's toc id, then the media type, then the file
// extension of href. Everything else is ItemMisc.
func Classify(id, mediaType, href, tocID string) ItemType {
	if tocID != "" && id == tocID {
		return ItemToc
	}

	switch {
	case mediaType == "text/css":
		return ItemCSS
	case strings.HasPrefix(mediaType, "image/"):
		return ItemImage
	case strings.HasPrefix(mediaType, "application/xhtml"):
		return ItemHTML
	}

	switch strings.ToLower(path.Ext(href)) {
	case ".css":
		return ItemCSS
	case ".png", ".jpeg", ".jpg", ".gif", ".svg":
		return ItemImage
	case ".html", ".xhtml":
		return ItemHTML
	}

	return ItemMisc
}

// Entry is a manifest item as read from the tree at lookup time.
type Entry struct {
	ID         string
	Href       string // decoded, relative to the package document
	MediaType  string
	Properties []string
	Type       ItemType
	AbsPath    string // path inside the package when the entry was read
}

// Item is a classified manifest entry able to normalize its own content
// and to compute its flattened location.
type Item interface {
	ID() string
	Type() ItemType
	Href() string
	MediaType() string
	AbsPath() string

	// Normalize rewrites the item's content in place. It runs while every
	// file is still at its original location.
	Normalize() error

	// NormalizedHashedPath returns the flattened location of the item,
	// relative to the directory of relativeTo, or package-absolute when
	// relativeTo is empty.
	NormalizedHashedPath(relativeTo string) string
}

// ItemFactory builds the Item for an entry. The manifest passes itself so
// that items can resolve the files they reference.
type ItemFactory func(m *Manifest, e Entry) Item

// BasicItem implements Item with no content normalization. Richer item
// types embed it.
type BasicItem struct {
	entry Entry
}

// NewBasicItem returns an Item for e.
func NewBasicItem(e Entry) *BasicItem {
	return &BasicItem{entry: e}
}

func (i *BasicItem) Entry() Entry      { return i.entry }
func (i *BasicItem) ID() string        { return i.entry.ID }
func (i *BasicItem) Type() ItemType    { return i.entry.Type }
func (i *BasicItem) Href() string      { return i.entry.Href }
func (i *BasicItem) MediaType() string { return i.entry.MediaType }
func (i *BasicItem) AbsPath() string   { return i.entry.AbsPath }

// Normalize does nothing.
func (i *BasicItem) Normalize() error { return nil }

func (i *BasicItem) NormalizedHashedPath(relativeTo string) string {
	hashed := HashedPath(i.entry.AbsPath)
	if relativeTo == "" {
		return hashed
	}
	return pathcodec.Rel(relativeTo, hashed)
}

var hashedNameRe = regexp.MustCompile(`^[0-9a-f]{32}(\.[^./]*)?$`)

// HashedPath maps a path inside the package to its flattened location:
// FlatDir/<md5 of the path><lower-cased extension>. A path that already has
// that shape is returned unchanged, so applying HashedPath twice is the same
// as applying it once.
func HashedPath(absPath string) string {
	absPath = pathcodec.Clean(absPath)
	if path.Dir(absPath) == FlatDir && hashedNameRe.MatchString(path.Base(absPath)) {
		return absPath
	}
	sum := md5.Sum([]byte(absPath))
	return FlatDir + "/" + hex.EncodeToString(sum[:]) + strings.ToLower(path.Ext(absPath))
}
