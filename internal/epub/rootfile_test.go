package epub

import (
	"errors"
	"strings"
	"testing"
)

func TestParseRootfile(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
		wantErr error
	}{
		{
			name:    "single rootfile",
			content: testContainerXML,
			want:    "OEBPS/content.opf",
		},
		{
			name: "opf rootfile preferred",
			content: `<container xmlns="urn:oasis:names:tc:opendocument:xmlns:container"><rootfiles>
<rootfile full-path="book.pdf" media-type="application/pdf"/>
<rootfile full-path="book.opf" media-type="application/oebps-package+xml"/>
</rootfiles></container>`,
			want: "book.opf",
		},
		{
			name:    "no rootfile",
			content: `<container><rootfiles/></container>`,
			wantErr: ErrOPFPathNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRootfile([]byte(tt.content))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("parseRootfile() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseRootfile() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("parseRootfile() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseRootfile_Malformed(t *testing.T) {
	if _, err := parseRootfile([]byte("<container><rootfiles></container>")); err == nil {
		t.Fatal("parseRootfile() should fail for malformed XML")
	}
}

func TestRewriteRootfile(t *testing.T) {
	got := rewriteRootfile([]byte(testContainerXML), "OEBPS/package.opf")
	path, err := parseRootfile(got)
	if err != nil {
		t.Fatalf("parseRootfile() error = %v", err)
	}
	if path != "OEBPS/package.opf" {
		t.Errorf("rootfile = %q, want OEBPS/package.opf", path)
	}
	if !strings.Contains(string(got), "urn:oasis:names:tc:opendocument:xmlns:container") {
		t.Error("namespace lost while rewriting container.xml")
	}
}

func TestRewriteRootfile_Fallback(t *testing.T) {
	for _, content := range []string{"", "not xml <", `<container><rootfiles/></container>`} {
		got := rewriteRootfile([]byte(content), "a&b.opf")
		path, err := parseRootfile(got)
		if err != nil {
			t.Fatalf("parseRootfile(%q) error = %v", content, err)
		}
		if path != "a&b.opf" {
			t.Errorf("rootfile = %q, want a&b.opf", path)
		}
	}
}
