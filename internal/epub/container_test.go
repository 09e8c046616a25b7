package epub

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
)

const testContainerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

const testOPF = `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="2.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Test Book</dc:title>
    <dc:language>en</dc:language>
  </metadata>
  <manifest>
    <item id="chapter1" href="chapter1.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine>
    <itemref idref="chapter1"/>
  </spine>
</package>`

const testChapter = `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml">
<head><title>Chapter 1</title></head>
<body><h1>Chapter 1</h1><p>Hello, World!</p></body>
</html>`

type zipEntry struct {
	name   string
	body   string
	method uint16
}

func validEntries() []zipEntry {
	return []zipEntry{
		{name: "mimetype", body: "application/epub+zip", method: zip.Store},
		{name: "META-INF/container.xml", body: testContainerXML, method: zip.Deflate},
		{name: "OEBPS/content.opf", body: testOPF, method: zip.Deflate},
		{name: "OEBPS/chapter1.xhtml", body: testChapter, method: zip.Deflate},
	}
}

func buildZip(t *testing.T, entries []zipEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, e := range entries {
		fw, err := w.CreateHeader(&zip.FileHeader{Name: e.name, Method: e.method})
		if err != nil {
			t.Fatalf("failed to create %s: %v", e.name, err)
		}
		if _, err := fw.Write([]byte(e.body)); err != nil {
			t.Fatalf("failed to write %s: %v", e.name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close zip: %v", err)
	}
	return buf.Bytes()
}

// createTestEPUB writes entries as an EPUB file below dir.
func createTestEPUB(t *testing.T, dir string, entries []zipEntry) string {
	t.Helper()
	epubPath := filepath.Join(dir, "test.epub")
	if err := os.WriteFile(epubPath, buildZip(t, entries), 0o644); err != nil {
		t.Fatalf("failed to create test epub: %v", err)
	}
	return epubPath
}

func TestOpen(t *testing.T) {
	c, err := Open(createTestEPUB(t, t.TempDir(), validEntries()))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if c == nil {
		t.Fatal("Open() returned nil container")
	}
}

func TestOpen_FileNotFound(t *testing.T) {
	if _, err := Open("/nonexistent/path/test.epub"); err == nil {
		t.Fatal("Open() should fail for nonexistent file")
	}
}

func TestOpen_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		entries func() []zipEntry
		wantErr error
	}{
		{
			name: "invalid mimetype",
			entries: func() []zipEntry {
				e := validEntries()
				e[0].body = "application/zip"
				return e
			},
			wantErr: ErrInvalidMimetype,
		},
		{
			name: "compressed mimetype",
			entries: func() []zipEntry {
				e := validEntries()
				e[0].method = zip.Deflate
				return e
			},
			wantErr: ErrMimetypeCompressed,
		},
		{
			name: "missing mimetype",
			entries: func() []zipEntry {
				return validEntries()[1:]
			},
			wantErr: ErrMimetypeNotFound,
		},
		{
			name: "missing container",
			entries: func() []zipEntry {
				e := validEntries()
				return append(e[:1:1], e[2:]...)
			},
			wantErr: ErrContainerNotFound,
		},
		{
			name: "container without rootfile",
			entries: func() []zipEntry {
				e := validEntries()
				e[1].body = `<container xmlns="urn:oasis:names:tc:opendocument:xmlns:container"><rootfiles/></container>`
				return e
			},
			wantErr: ErrOPFPathNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(createTestEPUB(t, t.TempDir(), tt.entries()))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Open() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestContainer_OPFPath(t *testing.T) {
	c, err := Open(createTestEPUB(t, t.TempDir(), validEntries()))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	expected := "OEBPS/content.opf"
	if c.OPFPath() != expected {
		t.Errorf("OPFPath() = %q, want %q", c.OPFPath(), expected)
	}
}

func TestContainer_Files(t *testing.T) {
	c, err := Open(createTestEPUB(t, t.TempDir(), validEntries()))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	want := []string{"mimetype", "META-INF/container.xml", "OEBPS/content.opf", "OEBPS/chapter1.xhtml"}
	got := c.Files()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Files() = %v, want %v", got, want)
	}
}

func TestContainer_ReadFile(t *testing.T) {
	c, err := Open(createTestEPUB(t, t.TempDir(), validEntries()))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	content, err := c.ReadFile("./OEBPS/chapter1.xhtml")
	if err != nil {
		t.Fatalf("ReadFile() failed: %v", err)
	}
	if string(content) != testChapter {
		t.Errorf("ReadFile() = %q, want %q", string(content), testChapter)
	}

	if _, err := c.ReadFile("OEBPS/nonexistent.xhtml"); !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("ReadFile() error = %v, want ErrFileNotFound", err)
	}
}

func TestOpen_PathNormalization(t *testing.T) {
	entries := validEntries()
	entries[1].body = strings.Replace(testContainerXML, `full-path="OEBPS/content.opf"`, `full-path="./OEBPS/content.opf"`, 1)

	c, err := Open(createTestEPUB(t, t.TempDir(), entries))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	expected := "OEBPS/content.opf"
	if c.OPFPath() != expected {
		t.Errorf("OPFPath() = %q, want %q (path should be normalized)", c.OPFPath(), expected)
	}
}

func TestContainer_Move(t *testing.T) {
	data := buildZip(t, validEntries())
	c, err := Read(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Read() failed: %v", err)
	}

	if err := c.Move("OEBPS/chapter1.xhtml", "OEBPS/abc.xhtml"); err != nil {
		t.Fatalf("Move() failed: %v", err)
	}
	if c.Exists("OEBPS/chapter1.xhtml") {
		t.Error("source still exists after Move()")
	}
	if !c.Exists("OEBPS/abc.xhtml") {
		t.Error("destination missing after Move()")
	}
	if got := c.Files()[3]; got != "OEBPS/abc.xhtml" {
		t.Errorf("Files()[3] = %q, want archive position kept", got)
	}

	if err := c.Move("OEBPS/chapter1.xhtml", "OEBPS/x.xhtml"); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("Move() of missing file error = %v, want ErrFileNotFound", err)
	}
	if err := c.Move("OEBPS/abc.xhtml", "OEBPS/content.opf"); !errors.Is(err, ErrFileExists) {
		t.Errorf("Move() onto existing file error = %v, want ErrFileExists", err)
	}
	if err := c.Move("OEBPS/abc.xhtml", "OEBPS/abc.xhtml"); err != nil {
		t.Errorf("Move() onto itself error = %v", err)
	}
}

func TestContainer_WriteFileAndRemove(t *testing.T) {
	data := buildZip(t, validEntries())
	c, err := Read(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Read() failed: %v", err)
	}

	if err := c.WriteFile("OEBPS/new.css", []byte("p{}")); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
	if !c.Exists("OEBPS/new.css") {
		t.Fatal("written file missing")
	}
	c.Remove("OEBPS/new.css")
	if c.Exists("OEBPS/new.css") || len(c.Files()) != 4 {
		t.Fatalf("Remove() left %v", c.Files())
	}
}

func TestContainer_WriteRoundTrip(t *testing.T) {
	data := buildZip(t, validEntries())
	c, err := Read(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Read() failed: %v", err)
	}
	if err := c.Move("OEBPS/content.opf", "content.opf"); err != nil {
		t.Fatalf("Move() failed: %v", err)
	}
	if err := c.SetRootfile("content.opf"); err != nil {
		t.Fatalf("SetRootfile() failed: %v", err)
	}

	out := filepath.Join(t.TempDir(), "out.epub")
	if err := c.Save(out); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	zr, err := zip.OpenReader(out)
	if err != nil {
		t.Fatalf("failed to reopen: %v", err)
	}
	defer zr.Close()
	first := zr.File[0]
	if first.Name != "mimetype" || first.Method != zip.Store {
		t.Errorf("first entry = %s (method %d), want stored mimetype", first.Name, first.Method)
	}

	reopened, err := Open(out)
	if err != nil {
		t.Fatalf("Open() of written archive failed: %v", err)
	}
	if reopened.OPFPath() != "content.opf" {
		t.Errorf("OPFPath() = %q, want content.opf", reopened.OPFPath())
	}
	names := reopened.Files()
	sort.Strings(names)
	want := []string{"META-INF/container.xml", "OEBPS/chapter1.xhtml", "content.opf", "mimetype"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("Files() = %v, want %v", names, want)
	}
}

func TestContainer_Extract(t *testing.T) {
	data := buildZip(t, validEntries())
	c, err := Read(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Read() failed: %v", err)
	}

	dir := filepath.Join(t.TempDir(), "book")
	if err := c.Extract(dir); err != nil {
		t.Fatalf("Extract() failed: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dir, "OEBPS", "chapter1.xhtml"))
	if err != nil {
		t.Fatalf("extracted file missing: %v", err)
	}
	if string(got) != testChapter {
		t.Errorf("extracted content = %q", got)
	}
}
