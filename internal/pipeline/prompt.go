package pipeline

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Mnemosyn1154/WVP-QNA/internal/model"
	"github.com/Mnemosyn1154/WVP-QNA/internal/router"
)

// maxDocumentChars caps how much extracted text one document contributes to
// a text prompt. Full filings run to hundreds of pages; the leading sections
// carry the financial statements.
const maxDocumentChars = 12000

const simpleSystemPrompt = `당신은 한국 투자 포트폴리오 기업의 재무 정보를 분석하는 전문가입니다.

간단하고 명확한 답변을 제공해주세요. 주요 수치와 사실을 중심으로 답변하되,
복잡한 계산이나 깊은 분석이 필요한 경우 그렇다고 명시해주세요.

답변 형식:
- 핵심 정보를 먼저 제시
- 간단명료하게 설명
- 필요시 주요 수치 포함`

const complexSystemPrompt = `당신은 한국 투자 포트폴리오 기업의 재무 문서를 분석하는 전문가입니다.

주어진 문서를 분석하여 사용자의 질문에 정확하게 답변해주세요.

답변 시 주의사항:
1. 문서에 있는 정보만을 기반으로 답변하세요
2. 구체적인 숫자나 수치가 있다면 반드시 포함하세요
3. 답변의 근거가 되는 페이지나 섹션을 언급하세요
4. 찾을 수 없는 정보는 솔직하게 "문서에서 찾을 수 없습니다"라고 답하세요
5. 모든 금액은 원화 단위로, 천 단위 구분자를 사용하여 표시하세요 (예: 1,234,567원)`

// buildTextPrompt assembles the prompt for text-only tiers: extracted
// document text and retrieved chunks as labeled context, then the question.
func buildTextPrompt(in router.CallInput) string {
	var b strings.Builder

	docContext := documentContext(in.Documents)
	if docContext != "" {
		b.WriteString("참고 문서:\n")
		b.WriteString(docContext)
		b.WriteString("\n\n")
	}

	if chunkContext := chunkContext(in.Chunks); chunkContext != "" {
		b.WriteString("참고 정보:\n")
		b.WriteString(chunkContext)
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "질문: %s\n\n답변:", in.Question.Text)
	return b.String()
}

// buildAnalysisInstruction is the text part that accompanies PDF document
// blocks on the PDF-capable tier.
func buildAnalysisInstruction(in router.CallInput) string {
	var b strings.Builder

	names := make([]string, 0, len(in.Documents))
	for _, d := range in.Documents {
		names = append(names, d.Candidate.DisplayName())
	}
	if len(names) > 0 {
		fmt.Fprintf(&b, "위 문서(%s)를 분석하여 다음 질문에 답변해주세요:\n\n", strings.Join(names, ", "))
	} else {
		b.WriteString("다음 질문에 답변해주세요:\n\n")
	}

	b.WriteString(in.Question.Text)

	if chunkContext := chunkContext(in.Chunks); chunkContext != "" {
		b.WriteString("\n\n참고 정보:\n")
		b.WriteString(chunkContext)
	}

	b.WriteString("\n\n답변 시 문서에 있는 구체적인 수치와 내용을 인용해주세요.")
	return b.String()
}

func documentContext(docs []router.Document) string {
	var parts []string
	for _, d := range docs {
		if !d.Extracted.Usable() {
			continue
		}
		parts = append(parts, fmt.Sprintf("[%s]\n%s", d.Candidate.DisplayName(), truncateAtRune(d.Extracted.Text, maxDocumentChars)))
	}
	return strings.Join(parts, "\n\n")
}

// truncateAtRune cuts s to at most max bytes without splitting a
// multi-byte character, so hangul text never reaches the provider with a
// mangled trailing rune.
func truncateAtRune(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func chunkContext(chunks []model.RetrievedChunk) string {
	var parts []string
	for _, c := range chunks {
		label := c.Title
		if label == "" {
			label = c.SourceID
		}
		parts = append(parts, fmt.Sprintf("[출처: %s]\n%s", label, c.Content))
	}
	return strings.Join(parts, "\n")
}
