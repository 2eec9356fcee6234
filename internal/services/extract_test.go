package services

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
)

func writeTestDocx(t *testing.T, dir, name, documentXML string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create docx file: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	entry, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("failed to create zip entry: %v", err)
	}
	if _, err := entry.Write([]byte(documentXML)); err != nil {
		t.Fatalf("failed to write document.xml: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to close zip: %v", err)
	}
	return path
}

const testDocumentXML = `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Adaptive Scheduling</w:t></w:r></w:p>
    <w:p><w:r><w:t>in Distributed</w:t></w:r><w:r><w:t>Queues</w:t></w:r></w:p>
  </w:body>
</w:document>`

func TestExtractAttachmentText_PlainText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("hello manuscript"), 0644); err != nil {
		t.Fatal(err)
	}

	text, supported, err := ExtractAttachmentText(path, "notes.txt")
	if err != nil {
		t.Fatalf("extraction failed: %v", err)
	}
	if !supported {
		t.Error("txt should be a supported format")
	}
	if text != "hello manuscript" {
		t.Errorf("text = %q", text)
	}
}

func TestExtractAttachmentText_Markdown(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "README.md")
	if err := os.WriteFile(path, []byte("# Title\n\nBody"), 0644); err != nil {
		t.Fatal(err)
	}

	text, supported, err := ExtractAttachmentText(path, "README.md")
	if err != nil || !supported {
		t.Fatalf("markdown extraction failed: supported=%v err=%v", supported, err)
	}
	if text != "# Title\n\nBody" {
		t.Errorf("markdown should be passed through raw, got %q", text)
	}
}

func TestExtractAttachmentText_Docx(t *testing.T) {
	dir := t.TempDir()
	path := writeTestDocx(t, dir, "paper.docx", testDocumentXML)

	text, supported, err := ExtractAttachmentText(path, "paper.docx")
	if err != nil {
		t.Fatalf("docx extraction failed: %v", err)
	}
	if !supported {
		t.Error("docx should be a supported format")
	}
	want := "Adaptive Scheduling in Distributed Queues"
	if text != want {
		t.Errorf("text = %q, expected %q", text, want)
	}
}

func TestExtractAttachmentText_DocxDeterministic(t *testing.T) {
	dir := t.TempDir()
	path := writeTestDocx(t, dir, "paper.docx", testDocumentXML)

	first, _, err := ExtractAttachmentText(path, "paper.docx")
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		again, _, err := ExtractAttachmentText(path, "paper.docx")
		if err != nil {
			t.Fatal(err)
		}
		if again != first {
			t.Fatalf("extraction is not deterministic: %q vs %q", again, first)
		}
	}
}

func TestExtractAttachmentText_DocxMissingDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.docx")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	entry, _ := zw.Create("word/styles.xml")
	entry.Write([]byte("<styles/>"))
	zw.Close()
	f.Close()

	_, supported, err := ExtractAttachmentText(path, "broken.docx")
	if !supported {
		t.Error("docx should be a supported format")
	}
	if err == nil {
		t.Error("missing word/document.xml should be an error")
	}
}

func TestExtractAttachmentText_DocxNotAZip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fake.docx")
	if err := os.WriteFile(path, []byte("this is not a zip"), 0644); err != nil {
		t.Fatal(err)
	}

	_, supported, err := ExtractAttachmentText(path, "fake.docx")
	if !supported {
		t.Error("docx should be a supported format")
	}
	if err == nil {
		t.Error("a non-zip docx should be an error")
	}
}

func TestExtractAttachmentText_UnsupportedExtension(t *testing.T) {
	text, supported, err := ExtractAttachmentText("/nonexistent/image.png", "image.png")
	if err != nil {
		t.Errorf("unsupported formats should not error: %v", err)
	}
	if supported {
		t.Error("png should not be a supported format")
	}
	if text != "" {
		t.Errorf("text should be empty, got %q", text)
	}
}

func TestExtractAttachmentText_ExtensionCaseInsensitive(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "NOTES.TXT")
	if err := os.WriteFile(path, []byte("upper"), 0644); err != nil {
		t.Fatal(err)
	}

	text, supported, err := ExtractAttachmentText(path, "NOTES.TXT")
	if err != nil || !supported || text != "upper" {
		t.Errorf("uppercase extension should extract: supported=%v err=%v text=%q", supported, err, text)
	}
}
