// Package docstore provides read-only access to the portfolio company
// document library: a directory of PDFs described by a YAML manifest.
package docstore

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Mnemosyn1154/WVP-QNA/internal/model"
)

// Manifest is the on-disk description of the document library.
type Manifest struct {
	BaseDir   string          `yaml:"base_dir"`
	Companies []CompanyEntry  `yaml:"companies"`
	Documents []DocumentEntry `yaml:"documents"`
}

// CompanyEntry names a known portfolio company and the short forms that
// appear in questions.
type CompanyEntry struct {
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
}

// DocumentEntry is one PDF in the library.
type DocumentEntry struct {
	ID      string `yaml:"id"`
	Company string `yaml:"company"`
	DocType string `yaml:"doc_type"`
	Year    int    `yaml:"year"`
	Quarter int    `yaml:"quarter"`
	File    string `yaml:"file"`
}

// Store answers document lookups against a loaded manifest. All state is
// immutable after Load, so it is safe for concurrent use.
type Store struct {
	baseDir   string
	companies []CompanyEntry
	docs      []model.CandidateDocument
}

// Load reads the manifest at path. Relative document paths resolve against
// the manifest's base_dir, which itself resolves against the manifest's
// own directory.
func Load(path string) (*Store, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "docstore: read manifest")
	}

	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, eris.Wrap(err, "docstore: parse manifest")
	}

	baseDir := m.BaseDir
	if !filepath.IsAbs(baseDir) {
		baseDir = filepath.Join(filepath.Dir(path), baseDir)
	}

	docs := make([]model.CandidateDocument, 0, len(m.Documents))
	for _, d := range m.Documents {
		if d.Company == "" || d.File == "" {
			return nil, eris.Errorf("docstore: manifest document %q missing company or file", d.ID)
		}
		docs = append(docs, model.CandidateDocument{
			ID:       d.ID,
			Company:  d.Company,
			DocType:  d.DocType,
			Year:     d.Year,
			Quarter:  d.Quarter,
			FilePath: d.File,
		})
	}

	zap.L().Info("document manifest loaded",
		zap.String("path", path),
		zap.Int("documents", len(docs)),
		zap.Int("companies", len(m.Companies)),
	)

	return &Store{baseDir: baseDir, companies: m.Companies, docs: docs}, nil
}

// Find returns documents for the company, newest first. A year of 0 matches
// any year; an empty docType matches any type. When a specific year has no
// documents, the company's most recent document is returned instead so a
// question about a missing year still gets grounded on something.
func (s *Store) Find(company string, year int, docType string) []model.CandidateDocument {
	matched := s.filter(company, year, docType)
	if len(matched) == 0 && year != 0 {
		recent := s.filter(company, 0, docType)
		if len(recent) > 0 {
			matched = recent[:1]
		}
	}
	return matched
}

func (s *Store) filter(company string, year int, docType string) []model.CandidateDocument {
	var out []model.CandidateDocument
	for _, d := range s.docs {
		if d.Company != company {
			continue
		}
		if year != 0 && d.Year != year {
			continue
		}
		if docType != "" && d.DocType != docType {
			continue
		}
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year > out[j].Year
		}
		return out[i].Quarter > out[j].Quarter
	})
	return out
}

// ReadPDF loads the raw bytes for a document.
func (s *Store) ReadPDF(doc model.CandidateDocument) ([]byte, error) {
	path := doc.FilePath
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.baseDir, path)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "docstore: read pdf %s", doc.ID)
	}
	return raw, nil
}

// Companies returns the known company names.
func (s *Store) Companies() []string {
	out := make([]string, 0, len(s.companies))
	for _, c := range s.companies {
		out = append(out, c.Name)
	}
	return out
}

// ExtractCompanies finds known companies mentioned in free text. Full names
// match first; aliases cover the short forms people actually type. Order
// follows the manifest so comparison answers are stable.
func (s *Store) ExtractCompanies(text string) []string {
	lower := strings.ToLower(text)

	var out []string
	seen := make(map[string]bool)
	for _, c := range s.companies {
		if strings.Contains(lower, strings.ToLower(c.Name)) && !seen[c.Name] {
			out = append(out, c.Name)
			seen[c.Name] = true
			continue
		}
		for _, alias := range c.Aliases {
			if strings.Contains(lower, strings.ToLower(alias)) && !seen[c.Name] {
				out = append(out, c.Name)
				seen[c.Name] = true
				break
			}
		}
	}
	return out
}

// latestYear is the newest year present anywhere in the library.
func (s *Store) latestYear() int {
	year := 0
	for _, d := range s.docs {
		if d.Year > year {
			year = d.Year
		}
	}
	return year
}
