package converter

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path"
	"path/filepath"
	"sort"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"
	"github.com/yuanying/epubnorm/internal/epub"
	"github.com/yuanying/epubnorm/internal/opf"
)

const testContainerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

const testOPF = `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="2.0" unique-identifier="bookid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Test Book</dc:title>
    <dc:language>en</dc:language>
    <dc:identifier id="bookid">urn:uuid:1234</dc:identifier>
  </metadata>
  <manifest>
    <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>
    <item id="chapter1" href="text/chapter1.xhtml" media-type="application/xhtml+xml"/>
    <item id="chapter2" href="text/chapter%202.xhtml" media-type="application/xhtml+xml"/>
    <item id="style" href="styles/main.css" media-type="text/css"/>
    <item id="cover" href="images/cover.png" media-type="image/png"/>
    <item id="font" href="fonts/a.otf" media-type="application/vnd.ms-opentype"/>
  </manifest>
  <spine toc="ncx">
    <itemref idref="chapter1"/>
    <itemref idref="chapter2"/>
  </spine>
  <guide>
    <reference type="cover" title="Cover" href="text/chapter1.xhtml"/>
    <reference type="text" title="Start" href="text/chapter%202.xhtml#start"/>
  </guide>
</package>`

const testChapter1 = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml">
<head><title>One</title>
<link rel="stylesheet" type="text/css" href="../styles/main.css"/>
<style>body { background: url('../images/cover.png'); }</style>
</head>
<body>
<p><a href="chapter%202.xhtml#start">next</a> <a href="#local">here</a> <a href="http://example.com/x.html">ext</a></p>
<img src="../images/cover.png" alt=""/>
<div style="background-image: url(../images/cover.png)"></div>
<img src="../images/missing.png" alt=""/>
</body>
</html>
`

const testChapter2 = `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml">
<head><title>Two</title></head>
<body><h1 id="start">Two</h1><p>No references.</p></body>
</html>
`

const testCSS = `@import "extra.css";
@font-face { font-family: A; src: url("../fonts/a.otf"); }
.cover { background: url(../images/cover.png) no-repeat; }
`

const testNCX = `<?xml version="1.0" encoding="UTF-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
  <head><meta name="dtb:uid" content="urn:uuid:1234"/></head>
  <docTitle><text>Test Book</text></docTitle>
  <navMap>
    <navPoint id="np1" playOrder="1">
      <navLabel><text>One</text></navLabel>
      <content src="text/chapter1.xhtml"/>
    </navPoint>
    <navPoint id="np2" playOrder="2">
      <navLabel><text>Two</text></navLabel>
      <content src="text/chapter%202.xhtml#start"/>
    </navPoint>
  </navMap>
</ncx>`

// testFiles returns the files of the sample EPUB, mimetype excluded.
func testFiles() map[string][]byte {
	return map[string][]byte{
		"META-INF/container.xml":     []byte(testContainerXML),
		"OEBPS/content.opf":          []byte(testOPF),
		"OEBPS/toc.ncx":              []byte(testNCX),
		"OEBPS/text/chapter1.xhtml":  []byte(testChapter1),
		"OEBPS/text/chapter 2.xhtml": []byte(testChapter2),
		"OEBPS/styles/main.css":      []byte(testCSS),
		"OEBPS/images/cover.png":     pngBytes(),
		"OEBPS/fonts/a.otf":          []byte("OTTO font data"),
	}
}

func pngBytes() []byte {
	var buf bytes.Buffer
	_ = png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 2, 2)))
	return buf.Bytes()
}

// buildEPUB zips files behind a stored mimetype entry.
func buildEPUB(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	mw, err := w.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	require.NoError(t, err)
	_, err = mw.Write([]byte("application/epub+zip"))
	require.NoError(t, err)

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write(files[name])
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func writeEPUB(t *testing.T, files map[string][]byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "book.epub")
	require.NoError(t, os.WriteFile(p, buildEPUB(t, files), 0o644))
	return p
}

func openTestPackage(t *testing.T, files map[string][]byte, opts ItemOptions) (*opf.Package, *epub.Container) {
	t.Helper()
	data := buildEPUB(t, files)
	c, err := epub.Read(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	doc, err := opf.LoadDocument(c, c.OPFPath())
	require.NoError(t, err)
	pkg := opf.New(doc, opf.Options{Factory: NewItemFactory(opts)})
	return pkg, c
}

// hashedName is the flattened file name of a package-absolute path as seen
// from another flattened file.
func hashedName(absPath string) string {
	return path.Base(opf.HashedPath(absPath))
}

func mustItem(t *testing.T, pkg *opf.Package, id string) opf.Item {
	t.Helper()
	item, ok, err := pkg.Manifest.Item(id)
	require.NoError(t, err)
	require.True(t, ok, "manifest item %q", id)
	return item
}
