package app

import (
	"fmt"
	"log"
	"strings"

	"github.com/ledongthuc/pdf"
)

const (
	// Reading stops at whichever cap is hit first; a COF front-loads the
	// clauses that matter.
	maxExtractPages = 50
	maxExtractChars = 60000

	// Below this the document is most likely a scanned image.
	minMeaningfulChars = 100
)

// ExtractText pulls plain text from the PDF page by page. Unreadable pages
// are skipped; a near-empty result is still a success and the AI step has to
// cope with it.
func ExtractText(path string) (text string, err error) {
	// The parser panics on some malformed files; treat that as a failed
	// extraction, not a crashed request.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf parse panic: %v", r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	pages := reader.NumPage()
	if pages > maxExtractPages {
		pages = maxExtractPages
	}

	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := pageText(page)
		if err != nil {
			log.Printf("pdf: skipping unreadable page %d of %s: %v", i, path, err)
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
		if b.Len() > maxExtractChars {
			break
		}
	}

	text = b.String()
	if len(strings.TrimSpace(text)) < minMeaningfulChars {
		log.Printf("pdf: only %d chars extracted from %s, possibly a scanned document", len(strings.TrimSpace(text)), path)
	}
	return text, nil
}

// pageText isolates the library call; it panics on some malformed content
// streams and a bad page must not sink the whole extraction.
func pageText(page pdf.Page) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page parse panic: %v", r)
		}
	}()
	return page.GetPlainText(nil)
}
