package pipeline

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/Mnemosyn1154/WVP-QNA/internal/model"
	"github.com/Mnemosyn1154/WVP-QNA/internal/router"
	"github.com/Mnemosyn1154/WVP-QNA/pkg/anthropic"
	"github.com/Mnemosyn1154/WVP-QNA/pkg/gemini"
)

const (
	simpleMaxTokens  = 1000
	complexMaxTokens = 4000
	callTemperature  = 0.1
)

// geminiCaller answers on the text tier. Documents reach it only as
// extracted text inside the prompt; the router guarantees every document
// passed here has usable text.
type geminiCaller struct {
	client gemini.Client
	model  string
}

// NewGeminiCaller builds the text-tier caller.
func NewGeminiCaller(client gemini.Client, mdl string) router.Caller {
	return &geminiCaller{client: client, model: mdl}
}

func (c *geminiCaller) Call(ctx context.Context, in router.CallInput) (*router.CallResult, error) {
	temp := callTemperature
	maxTokens := simpleMaxTokens

	resp, err := c.client.GenerateContent(ctx, gemini.GenerateContentRequest{
		Model:             c.model,
		SystemInstruction: &gemini.Content{Parts: []gemini.Part{{Text: simpleSystemPrompt}}},
		Contents: []gemini.Content{
			{Role: "user", Parts: []gemini.Part{{Text: buildTextPrompt(in)}}},
		},
		GenerationConfig: &gemini.GenerationConfig{Temperature: &temp, MaxOutputTokens: &maxTokens},
	})
	if err != nil {
		return nil, err
	}

	text := resp.Text()
	if text == "" {
		return nil, eris.New("pipeline: empty gemini response")
	}

	var u model.TokenUsage
	if resp.UsageMetadata != nil {
		u = model.TokenUsage{
			InputTokens:  resp.UsageMetadata.PromptTokenCount,
			OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
		}
	}

	return &router.CallResult{Text: text, Model: c.model, Usage: u}, nil
}

// claudeCaller answers on the PDF-capable tier. Raw PDF bytes go to the
// model as document blocks, so scanned filings work without OCR.
type claudeCaller struct {
	client anthropic.Client
	model  string
}

// NewClaudeCaller builds the PDF-capable tier caller.
func NewClaudeCaller(client anthropic.Client, mdl string) router.Caller {
	return &claudeCaller{client: client, model: mdl}
}

func (c *claudeCaller) Call(ctx context.Context, in router.CallInput) (*router.CallResult, error) {
	var parts []anthropic.Part
	for _, d := range in.Documents {
		if len(d.PDF) > 0 {
			parts = append(parts, anthropic.Part{PDF: d.PDF})
		}
	}
	parts = append(parts, anthropic.Part{Text: buildAnalysisInstruction(in)})

	temp := callTemperature
	resp, err := c.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     c.model,
		MaxTokens: complexMaxTokens,
		// The system prompt is static across requests, so let the
		// provider cache it instead of re-reading it every call.
		System:      []anthropic.SystemBlock{{Text: complexSystemPrompt, CacheControl: &anthropic.CacheControl{TTL: "5m"}}},
		Messages:    []anthropic.Message{{Role: "user", Parts: parts}},
		Temperature: &temp,
	})
	if err != nil {
		return nil, err
	}

	text := resp.Text()
	if text == "" {
		return nil, eris.New("pipeline: empty claude response")
	}

	return &router.CallResult{
		Text:  text,
		Model: c.model,
		Usage: model.TokenUsage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
		},
	}, nil
}
