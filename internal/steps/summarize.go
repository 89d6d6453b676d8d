package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/agentkiln/stepforge/internal/errorkind"
	"github.com/agentkiln/stepforge/internal/step"
	"github.com/agentkiln/stepforge/internal/validate"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// SummarizeType is the task-declaration type name for Summarize.
const SummarizeType = "summarize"

const defaultMaxSummaryLength = 200

type summaryArtifact struct {
	Summary          string  `json:"summary"`
	OriginalLength   int     `json:"original_length"`
	SummaryLength    int     `json:"summary_length"`
	CompressionRatio float64 `json:"compression_ratio"`
	Backend          string  `json:"backend"`
}

// Summarizer produces summary text for content. RuleBasedSummarizer is
// always available; AnthropicSummarizer is used instead only for a
// step that declares config.use_llm: true while an API key is
// configured.
type Summarizer interface {
	Summarize(ctx context.Context, content string, maxLength int, memoryContext string) (string, error)
	Backend() string
}

// RuleBasedSummarizer truncates content to the configured length. It
// never fails and never calls out to the network, so it is always a
// safe fallback.
type RuleBasedSummarizer struct{}

func (RuleBasedSummarizer) Backend() string { return "rule_based" }

func (RuleBasedSummarizer) Summarize(ctx context.Context, content string, maxLength int, memoryContext string) (string, error) {
	runes := []rune(content)
	if len(runes) <= maxLength {
		return content, nil
	}
	return string(runes[:maxLength]) + "...", nil
}

// AnthropicSummarizer asks Claude to summarize content, grounding the
// request in the project's memory bank context when available.
type AnthropicSummarizer struct {
	Client anthropic.Client
	Model  anthropic.Model
}

// NewAnthropicSummarizer builds a summarizer backed by the Anthropic
// API. apiKey must be non-empty; callers should fall back to
// RuleBasedSummarizer when no key is configured.
func NewAnthropicSummarizer(apiKey string) AnthropicSummarizer {
	return AnthropicSummarizer{
		Client: anthropic.NewClient(
			option.WithAPIKey(apiKey),
			option.WithRequestTimeout(30*time.Second),
		),
		Model: anthropic.ModelClaude3_5HaikuLatest,
	}
}

func (a AnthropicSummarizer) Backend() string { return "anthropic" }

func (a AnthropicSummarizer) Summarize(ctx context.Context, content string, maxLength int, memoryContext string) (string, error) {
	systemPrompt := "Summarize the user's text in at most " +
		fmt.Sprintf("%d", maxLength) + " characters. Respond with only the summary, no preamble."
	if memoryContext != "" {
		systemPrompt += "\n\nProject context:\n" + memoryContext
	}

	msg, err := a.Client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     a.Model,
		MaxTokens: 512,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(content)),
		},
	})
	if err != nil {
		return "", err
	}

	var out string
	for i := range msg.Content {
		if text, ok := msg.Content[i].AsAny().(anthropic.TextBlock); ok {
			out += text.Text
		}
	}
	return out, nil
}

// Summarize loads its single input artifact's content and writes a
// summary artifact to its single declared output. Primary is the
// step's preferred backend (nil unless the declaration asked for
// config.use_llm and an Anthropic-backed summarizer is configured);
// Fallback is always RuleBasedSummarizer, used directly when Primary
// is nil and as the recovery path when Primary errors.
type Summarize struct {
	step.Base
	MaxSummaryLength int
	Primary          Summarizer
	Fallback         Summarizer
	MemoryContext    func() (string, error)
}

// NewSummarize builds a Summarize step. anthropicSummarizer is the
// Anthropic-backed summarizer to use when a step declares
// config.use_llm: true; pass nil when no API key is configured, in
// which case use_llm is ignored and the rule-based summarizer always
// runs. memoryContext supplies the memory bank text passed to the
// Anthropic backend.
func NewSummarize(anthropicSummarizer Summarizer, memoryContext func() (string, error)) step.Constructor {
	return func(desc step.Descriptor) (step.Step, error) {
		if len(desc.Inputs) != 1 || len(desc.Outputs) != 1 {
			return nil, errorkind.ConfigErrorf("summarize step %s: exactly one input and one output are required", desc.ID)
		}
		maxLen := defaultMaxSummaryLength
		switch v := desc.Config["max_summary_length"].(type) {
		case int:
			if v > 0 {
				maxLen = v
			}
		case int64:
			if v > 0 {
				maxLen = int(v)
			}
		case uint64:
			if v > 0 {
				maxLen = int(v)
			}
		}
		useLLM, _ := desc.Config["use_llm"].(bool)
		var primary Summarizer
		if useLLM && anthropicSummarizer != nil {
			primary = anthropicSummarizer
		}
		return &Summarize{
			Base:             step.Base{StepID: desc.ID, StepName: desc.Name, StepInputs: desc.Inputs, StepOutputs: desc.Outputs},
			MaxSummaryLength: maxLen,
			Primary:          primary,
			Fallback:         RuleBasedSummarizer{},
			MemoryContext:    memoryContext,
		}, nil
	}
}

func (s *Summarize) Run(ctx context.Context, sc *step.Context) (step.Result, error) {
	inputPaths := s.InputPaths(sc)
	inPath, ok := inputPaths[s.StepInputs[0]]
	if !ok {
		return step.Result{}, errorkind.New(errorkind.StepRun, fmt.Sprintf("input artifact %s not available", s.StepInputs[0]))
	}

	data, err := os.ReadFile(inPath) // #nosec G304 - resolved via manifest-tracked artifact path
	if err != nil {
		return step.Result{}, errorkind.Wrap(errorkind.StepRun, "reading input artifact", err)
	}

	var input loadedInput
	if err := json.Unmarshal(data, &input); err != nil {
		return step.Result{}, errorkind.Wrap(errorkind.StepRun, "decoding input artifact", err)
	}

	memCtx := ""
	if s.MemoryContext != nil {
		memCtx, err = s.MemoryContext()
		if err != nil {
			return step.Result{}, errorkind.Wrap(errorkind.StepRun, "reading memory context", err)
		}
	}

	active := s.Fallback
	if s.Primary != nil {
		active = s.Primary
	}

	summaryText, err := active.Summarize(ctx, input.Content, s.MaxSummaryLength, memCtx)
	if err != nil && active != s.Fallback {
		// The LLM call failed transiently; never hard-fail the step for
		// that alone, fall back to the rule-based backend instead.
		active = s.Fallback
		summaryText, err = active.Summarize(ctx, input.Content, s.MaxSummaryLength, memCtx)
	}
	if err != nil {
		return step.Result{}, errorkind.Wrap(errorkind.StepRun, "summarizing content", err)
	}

	ratio := 0.0
	if len(input.Content) > 0 {
		ratio = float64(len(summaryText)) / float64(len(input.Content))
	}

	doc := summaryArtifact{
		Summary:          summaryText,
		OriginalLength:   len(input.Content),
		SummaryLength:    len(summaryText),
		CompressionRatio: ratio,
		Backend:          active.Backend(),
	}
	buf, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return step.Result{}, errorkind.Wrap(errorkind.StepRun, "encoding summary artifact", err)
	}
	outPath := s.OutputPath(sc, s.StepOutputs[0])
	if err := os.WriteFile(outPath, buf, 0o644); err != nil {
		return step.Result{}, errorkind.Wrap(errorkind.StepRun, "writing summary artifact", err)
	}

	return step.Result{Status: "success", Detail: map[string]any{"summary_length": len(summaryText)}}, nil
}

func (s *Summarize) Validate(ctx context.Context, sc *step.Context) (bool, error) {
	outPath := s.OutputPath(sc, s.StepOutputs[0])
	if !validate.FileExists(outPath) {
		return false, nil
	}

	data, err := os.ReadFile(outPath) // #nosec G304 - our own just-written artifact path
	if err != nil {
		return false, nil
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return false, nil
	}
	summary, ok := doc["summary"].(string)
	if !ok || summary == "" {
		return false, nil
	}
	if _, ok := doc["original_length"]; !ok {
		return false, nil
	}
	return true, nil
}
