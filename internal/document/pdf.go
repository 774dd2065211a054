package document

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// readPDF extracts the plain text of a PDF, page by page. A page that fails
// to extract is annotated in place rather than failing the document; a PDF
// with no extractable text at all is an error.
func readPDF(path string) (content string, size int64, err error) {
	// The pdf package panics on some malformed inputs; convert that to a
	// decoder error so the record boundary holds.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("document: read pdf: %v", r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("document: open pdf: %w", err)
	}
	defer f.Close()

	if info, statErr := f.Stat(); statErr == nil {
		size = info.Size()
	}

	var parts []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, pageErr := page.GetPlainText(nil)
		if pageErr != nil {
			parts = append(parts, fmt.Sprintf("--- Page %d ---\n[error extracting text: %v]", i, pageErr))
			continue
		}
		if strings.TrimSpace(text) != "" {
			parts = append(parts, fmt.Sprintf("--- Page %d ---\n%s", i, text))
		}
	}

	extracted := strings.Join(parts, "\n\n")
	if strings.TrimSpace(extracted) == "" {
		return "", size, fmt.Errorf("document: no text extracted from pdf")
	}
	return extracted, size, nil
}
