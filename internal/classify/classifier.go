// Package classify decides which provider tier a question should start on.
// The signal is advisory: the router still verifies budget and extraction
// quality before committing to a tier.
package classify

import (
	"strings"

	"go.uber.org/zap"

	"github.com/Mnemosyn1154/WVP-QNA/internal/model"
)

// Classifier applies an ordered rule list to a question. Rules come from
// configuration so operators can tune escalation without a rebuild.
type Classifier struct {
	keywords  []string
	companies map[string]struct{}
}

// New creates a Classifier from the configured comparison keywords and the
// set of companies whose filings are known to be scanned.
func New(comparisonKeywords []string, escalationCompanies []string) *Classifier {
	companies := make(map[string]struct{}, len(escalationCompanies))
	for _, c := range escalationCompanies {
		companies[c] = struct{}{}
	}
	return &Classifier{keywords: comparisonKeywords, companies: companies}
}

// Classify evaluates the rules in order; the first match wins.
//
//  1. A comparison keyword in the question forces the complex path: answers
//     that span companies need the larger context window.
//  2. Any candidate document from a known scanned-filings company forces the
//     complex path, since text extraction will not produce usable input.
//  3. Otherwise the simple path is the starting point.
func (c *Classifier) Classify(q model.Question, candidates []model.CandidateDocument) model.ClassificationSignal {
	lower := strings.ToLower(q.Text)

	for _, kw := range c.keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			sig := model.ClassificationSignal{NeedsComplexPath: true, Reason: model.ReasonComparisonKeyword}
			logSignal(q, sig, "keyword", kw)
			return sig
		}
	}

	for _, doc := range candidates {
		if _, ok := c.companies[doc.Company]; ok {
			sig := model.ClassificationSignal{NeedsComplexPath: true, Reason: model.ReasonScannedCompany}
			logSignal(q, sig, "company", doc.Company)
			return sig
		}
	}

	return model.ClassificationSignal{Reason: model.ReasonDefault}
}

func logSignal(q model.Question, sig model.ClassificationSignal, ruleKey, ruleValue string) {
	zap.L().Debug("question classified",
		zap.String("reason", string(sig.Reason)),
		zap.String(ruleKey, ruleValue),
		zap.Int("question_chars", len(q.Text)),
	)
}
