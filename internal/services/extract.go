package services

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ExtractAttachmentText extracts plain text from a manuscript attachment
// based on its file extension. The second return value reports whether the
// extension is supported at all; an unsupported extension is not an error,
// the attachment is simply skipped.
//
// Extraction is CPU/I/O heavy for pdf and docx, so callers must only invoke
// this from the review worker, never from the request-accepting path.
func ExtractAttachmentText(filePath, fileName string) (string, bool, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))

	switch ext {
	case "txt", "md", "markdown":
		data, err := os.ReadFile(filePath)
		if err != nil {
			return "", true, fmt.Errorf("failed to read text attachment: %w", err)
		}
		return string(data), true, nil
	case "pdf":
		text, err := extractPDFText(filePath)
		if err != nil {
			return "", true, fmt.Errorf("failed to parse PDF: %w", err)
		}
		return text, true, nil
	case "docx":
		text, err := extractDocxText(filePath)
		if err != nil {
			return "", true, err
		}
		return text, true, nil
	default:
		return "", false, nil
	}
}

func extractPDFText(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// extractDocxText opens the docx as a zip package, reads the main document
// part and joins all text nodes with single spaces. Identical input bytes
// always produce identical output.
func extractDocxText(path string) (string, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("invalid DOCX zip structure: %w", err)
	}
	defer archive.Close()

	var document *zip.File
	for _, f := range archive.File {
		if f.Name == "word/document.xml" {
			document = f
			break
		}
	}
	if document == nil {
		return "", fmt.Errorf("missing word/document.xml in DOCX")
	}

	rc, err := document.Open()
	if err != nil {
		return "", fmt.Errorf("failed to read DOCX XML: %w", err)
	}
	defer rc.Close()

	return collectXMLText(rc)
}

func collectXMLText(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)

	var text strings.Builder
	for {
		token, err := decoder.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return "", fmt.Errorf("failed to parse DOCX XML: %w", err)
		}

		chars, ok := token.(xml.CharData)
		if !ok {
			continue
		}
		value := strings.TrimSpace(string(chars))
		if value == "" {
			continue
		}
		if text.Len() > 0 {
			text.WriteByte(' ')
		}
		text.WriteString(value)
	}

	return text.String(), nil
}
