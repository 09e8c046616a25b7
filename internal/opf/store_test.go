package opf

import (
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/require"
)

// memStore is an in-memory Storage that records moves.
type memStore struct {
	files  map[string][]byte
	events []string
}

func newMemStore(files map[string]string) *memStore {
	s := &memStore{files: make(map[string][]byte)}
	for name, content := range files {
		s.files[name] = []byte(content)
	}
	return s
}

func (s *memStore) ReadFile(name string) ([]byte, error) {
	data, ok := s.files[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, fs.ErrNotExist)
	}
	return data, nil
}

func (s *memStore) WriteFile(name string, data []byte) error {
	s.files[name] = data
	return nil
}

func (s *memStore) Move(from, to string) error {
	data, ok := s.files[from]
	if !ok {
		return fmt.Errorf("%s: %w", from, fs.ErrNotExist)
	}
	delete(s.files, from)
	s.files[to] = data
	s.events = append(s.events, "move "+from)
	return nil
}

func (s *memStore) Exists(name string) bool {
	_, ok := s.files[name]
	return ok
}

// loadPackage stores opfContent at opfPath along with the given files and
// opens it.
func loadPackage(t *testing.T, opfPath, opfContent string, files map[string]string, opts Options) (*Package, *memStore) {
	t.Helper()
	all := map[string]string{opfPath: opfContent}
	for k, v := range files {
		all[k] = v
	}
	store := newMemStore(all)
	doc, err := LoadDocument(store, opfPath)
	require.NoError(t, err)
	return New(doc, opts), store
}

const sampleOPF = `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="2.0" unique-identifier="bookid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf">
    <dc:title>Sample Book Title</dc:title>
    <dc:identifier id="bookid">urn:isbn:1234567890</dc:identifier>
    <meta name="cover" content="cover-image"/>
  </metadata>
  <manifest>
    <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>
    <item id="cover-image" href="images/cover.jpg" media-type="image/jpeg"/>
    <item id="chapter1" href="text/chapter1.xhtml" media-type="application/xhtml+xml"/>
    <item id="chapter2" href="text/chapter%202.xhtml" media-type="application/xhtml+xml"/>
    <item id="stylesheet" href="css/style.css" media-type="text/css"/>
    <item id="font" href="fonts/serif.otf" media-type="application/vnd.ms-opentype"/>
  </manifest>
  <spine toc="ncx">
    <itemref idref="chapter1"/>
    <itemref idref="missing"/>
    <itemref idref="chapter2" linear="no"/>
  </spine>
  <guide>
    <reference type="cover" title="Cover" href="images/cover.jpg"/>
    <reference type="text" title="Start" href="text/chapter1.xhtml#section2"/>
  </guide>
</package>`

func sampleFiles() map[string]string {
	return map[string]string{
		"OEBPS/toc.ncx":              "ncx",
		"OEBPS/images/cover.jpg":     "jpg",
		"OEBPS/text/chapter1.xhtml":  "ch1",
		"OEBPS/text/chapter 2.xhtml": "ch2",
		"OEBPS/css/style.css":        "css",
		"OEBPS/fonts/serif.otf":      "otf",
	}
}
