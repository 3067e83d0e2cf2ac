package model

import "fmt"

// CandidateDocument identifies a financial document that may be relevant
// to a question. Candidates are created by the external indexing job and
// are read-only during request handling.
type CandidateDocument struct {
	ID       string `json:"id"`
	Company  string `json:"company"`
	DocType  string `json:"doc_type"`
	Year     int    `json:"year"`
	Quarter  int    `json:"quarter,omitempty"`
	FilePath string `json:"file_path"`
}

// DisplayName renders the document reference the way it appears in answer
// sources, e.g. "설로인 2024년 사업보고서".
func (d CandidateDocument) DisplayName() string {
	if d.Year == 0 {
		return fmt.Sprintf("%s %s", d.Company, d.DocType)
	}
	return fmt.Sprintf("%s %d년 %s", d.Company, d.Year, d.DocType)
}

// TextQuality classifies how much machine-readable text a document yielded.
type TextQuality string

const (
	// QualityText means extraction produced usable plain text.
	QualityText TextQuality = "text"
	// QualityScanned means the document parsed but contains little or no
	// text, indicating a scanned/image-only PDF.
	QualityScanned TextQuality = "scanned"
	// QualityExtractionFailed means the PDF could not be parsed at all.
	QualityExtractionFailed TextQuality = "extraction_failed"
)

// ExtractedText is the result of running text extraction on one candidate
// document. Computed lazily per request; never cached across restarts.
type ExtractedText struct {
	DocumentID string      `json:"document_id"`
	Text       string      `json:"text"`
	Quality    TextQuality `json:"quality"`
	Pages      int         `json:"pages"`
}

// Usable reports whether the extracted text can back a text-prompt answer.
func (e ExtractedText) Usable() bool {
	return e.Quality == QualityText
}
