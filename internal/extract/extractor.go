package extract

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	pdflib "github.com/ledongthuc/pdf"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Mnemosyn1154/WVP-QNA/internal/model"
)

// DefaultMinTextChars is the extraction quality threshold: documents
// yielding less trimmed text than this are classified as scanned.
const DefaultMinTextChars = 100

// Extractor turns raw PDF bytes into plain text with a quality signal.
// It is a pure function over its input: identical bytes always produce
// identical output, and malformed input becomes a classification rather
// than an error.
type Extractor struct {
	minTextChars int
}

// New creates an Extractor. minTextChars <= 0 selects DefaultMinTextChars.
func New(minTextChars int) *Extractor {
	if minTextChars <= 0 {
		minTextChars = DefaultMinTextChars
	}
	return &Extractor{minTextChars: minTextChars}
}

// Extract parses the PDF and classifies the result:
//   - text: usable plain text was extracted
//   - scanned: the PDF parsed but yielded less than the minimum characters
//   - extraction_failed: the bytes could not be parsed as a PDF
//
// Failures never propagate to the caller; the router consumes the quality
// classification instead.
func (e *Extractor) Extract(doc model.CandidateDocument, pdfBytes []byte) model.ExtractedText {
	text, pages, err := extractText(pdfBytes)
	if err != nil {
		zap.L().Warn("pdf extraction failed",
			zap.String("document", doc.ID),
			zap.String("company", doc.Company),
			zap.Error(err),
		)
		return model.ExtractedText{
			DocumentID: doc.ID,
			Quality:    model.QualityExtractionFailed,
		}
	}

	// The threshold counts characters, not bytes: hangul is 3 bytes per
	// syllable in UTF-8, so a byte count would let near-empty Korean
	// filings pass as text.
	trimmed := strings.TrimSpace(text)
	if utf8.RuneCountInString(trimmed) < e.minTextChars {
		zap.L().Info("pdf appears to be scanned",
			zap.String("document", doc.ID),
			zap.Int("chars", utf8.RuneCountInString(trimmed)),
			zap.Int("threshold", e.minTextChars),
		)
		return model.ExtractedText{
			DocumentID: doc.ID,
			Text:       trimmed,
			Quality:    model.QualityScanned,
			Pages:      pages,
		}
	}

	return model.ExtractedText{
		DocumentID: doc.ID,
		Text:       trimmed,
		Quality:    model.QualityText,
		Pages:      pages,
	}
}

// extractText runs ledongthuc/pdf over the bytes. The library requires a
// ReadSeeker plus size, so the bytes go through a temp file; it also panics
// on some malformed inputs, which we convert to an error.
func extractText(pdfBytes []byte) (text string, pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.New(fmt.Sprintf("extract: pdf parser panic: %v", r))
		}
	}()

	tmp, err := os.CreateTemp("", "wvpqna-pdf-*.pdf")
	if err != nil {
		return "", 0, err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(pdfBytes); err != nil {
		tmp.Close()
		return "", 0, err
	}
	tmp.Close()

	f, reader, err := pdflib.Open(tmpPath)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	var buf strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		pageText, err := pageContent(page)
		if err != nil {
			continue
		}
		if strings.TrimSpace(pageText) == "" {
			continue
		}

		if buf.Len() > 0 {
			buf.WriteString("\f")
		}
		buf.WriteString(pageText)
	}

	return buf.String(), numPages, nil
}

// pageContent prefers row-structured extraction so table rows come out as
// delimited lines; it falls back to the flat text stream.
func pageContent(page pdflib.Page) (string, error) {
	rows, err := page.GetTextByRow()
	if err != nil || len(rows) == 0 {
		return page.GetPlainText(nil)
	}

	var buf strings.Builder
	for _, row := range rows {
		var cells []string
		for _, t := range row.Content {
			s := strings.TrimSpace(t.S)
			if s != "" {
				cells = append(cells, s)
			}
		}
		if len(cells) == 0 {
			continue
		}
		buf.WriteString(strings.Join(cells, " | "))
		buf.WriteString("\n")
	}
	return buf.String(), nil
}
