package opf

import "testing"

func TestReadMetadata_EPUB20(t *testing.T) {
	opfContent := `<?xml version="1.0" encoding="UTF-8"?>
<package version="2.0" xmlns="http://www.idpf.org/2007/opf" unique-identifier="bookid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf">
    <dc:title>Sample Book Title</dc:title>
    <dc:creator opf:role="aut">John Doe</dc:creator>
    <dc:creator opf:role="edt">Jane Editor</dc:creator>
    <dc:language>en</dc:language>
    <dc:identifier id="isbn">urn:isbn:0000000000</dc:identifier>
    <dc:identifier id="bookid">urn:isbn:1234567890</dc:identifier>
    <dc:publisher>Test Publisher</dc:publisher>
    <dc:date>2024-01-01</dc:date>
    <dc:description>This is a sample book description.</dc:description>
    <dc:subject>Fiction</dc:subject>
    <dc:subject>Adventure</dc:subject>
    <dc:rights>Copyright 2024</dc:rights>
    <meta name="cover" content="cover-image"/>
  </metadata>
  <manifest/>
</package>`
	pkg, _ := loadPackage(t, "OEBPS/content.opf", opfContent, nil, Options{})

	md := ReadMetadata(pkg.Document)

	if md.Title != "Sample Book Title" {
		t.Errorf("Title = %q, want %q", md.Title, "Sample Book Title")
	}
	if len(md.Creators) != 2 {
		t.Fatalf("Creators count = %d, want 2", len(md.Creators))
	}
	if md.Creators[0].Name != "John Doe" || md.Creators[0].Role != "aut" {
		t.Errorf("Creators[0] = %+v, want John Doe/aut", md.Creators[0])
	}
	if md.Creators[1].Name != "Jane Editor" || md.Creators[1].Role != "edt" {
		t.Errorf("Creators[1] = %+v, want Jane Editor/edt", md.Creators[1])
	}
	if md.Language != "en" {
		t.Errorf("Language = %q, want %q", md.Language, "en")
	}
	if md.Identifier != "urn:isbn:1234567890" {
		t.Errorf("Identifier = %q, want %q", md.Identifier, "urn:isbn:1234567890")
	}
	if md.Publisher != "Test Publisher" {
		t.Errorf("Publisher = %q, want %q", md.Publisher, "Test Publisher")
	}
	if md.Date != "2024-01-01" {
		t.Errorf("Date = %q, want %q", md.Date, "2024-01-01")
	}
	if md.Description != "This is a sample book description." {
		t.Errorf("Description = %q", md.Description)
	}
	if len(md.Subjects) != 2 || md.Subjects[0] != "Fiction" || md.Subjects[1] != "Adventure" {
		t.Errorf("Subjects = %v, want [Fiction Adventure]", md.Subjects)
	}
	if md.Rights != "Copyright 2024" {
		t.Errorf("Rights = %q, want %q", md.Rights, "Copyright 2024")
	}
	if md.CoverID != "cover-image" {
		t.Errorf("CoverID = %q, want %q", md.CoverID, "cover-image")
	}
}

func TestReadMetadata_EPUB30(t *testing.T) {
	opfContent := `<?xml version="1.0" encoding="UTF-8"?>
<package version="3.0" xmlns="http://www.idpf.org/2007/opf" unique-identifier="bookid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>EPUB 3.0 Sample</dc:title>
    <dc:creator id="creator01" xml:lang="ja">Author Name</dc:creator>
    <meta refines="#creator01" property="role" scheme="marc:relators">aut</meta>
    <dc:language>ja</dc:language>
    <dc:identifier>urn:uuid:12345678-1234-1234-1234-123456789012</dc:identifier>
    <meta property="dcterms:modified">2024-01-15T12:00:00Z</meta>
  </metadata>
  <manifest/>
</package>`
	pkg, _ := loadPackage(t, "content/package.opf", opfContent, nil, Options{})

	md := ReadMetadata(pkg.Document)

	if md.Title != "EPUB 3.0 Sample" {
		t.Errorf("Title = %q, want %q", md.Title, "EPUB 3.0 Sample")
	}
	if len(md.Creators) != 1 {
		t.Fatalf("Creators count = %d, want 1", len(md.Creators))
	}
	if md.Creators[0].Role != "aut" {
		t.Errorf("Creators[0].Role = %q, want %q", md.Creators[0].Role, "aut")
	}
	if md.Creators[0].Lang != "ja" {
		t.Errorf("Creators[0].Lang = %q, want %q", md.Creators[0].Lang, "ja")
	}
	// No identifier carries the unique-identifier id, the first one is used
	if md.Identifier != "urn:uuid:12345678-1234-1234-1234-123456789012" {
		t.Errorf("Identifier = %q", md.Identifier)
	}
	if md.CoverID != "" {
		t.Errorf("CoverID = %q, want empty", md.CoverID)
	}
}

func TestReadMetadata_Missing(t *testing.T) {
	pkg, _ := loadPackage(t, "content.opf", `<package xmlns="http://www.idpf.org/2007/opf"><manifest/></package>`, nil, Options{})

	md := ReadMetadata(pkg.Document)
	if md.Title != "" || len(md.Creators) != 0 || len(md.Subjects) != 0 {
		t.Errorf("ReadMetadata() = %+v, want zero metadata", md)
	}
}
