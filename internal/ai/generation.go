package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/time/rate"

	"lumina-research/internal/model"
)

var (
	ErrEmptyGeneration = errors.New("generation service returned empty output")
	ErrInvalidRequest  = errors.New("invalid generation request")
)

// ResearchResult is the answer to a topic search plus the sources it cites.
type ResearchResult struct {
	Text    string                  `json:"text"`
	Sources []model.GroundingSource `json:"sources"`
}

// Generator is implemented by GenerationService and RemoteGenerator.
type Generator interface {
	Analyze(ctx context.Context, title, uri string) (*model.Analysis, error)
	Synthesize(ctx context.Context, docs []model.Document, folderName string) (string, error)
	Research(ctx context.Context, topic string, filters model.SearchFilters, onChunk func(text string) error) (*ResearchResult, error)
}

var (
	_ Generator = (*GenerationService)(nil)
	_ Generator = (*RemoteGenerator)(nil)
)

// GenerationService implements analyze, research and synthesize on top of an
// OpenAI-compatible chat model. Calls are throttled by a shared limiter.
type GenerationService struct {
	llm     *OpenAICompatibleClient
	cfg     ChatConfig
	limiter *rate.Limiter
}

func NewGenerationService(llm *OpenAICompatibleClient, cfg ChatConfig, limiter *rate.Limiter) *GenerationService {
	return &GenerationService{
		llm:     llm,
		cfg:     cfg,
		limiter: limiter,
	}
}

func (g *GenerationService) Analyze(ctx context.Context, title, uri string) (*model.Analysis, error) {
	title = strings.TrimSpace(title)
	uri = strings.TrimSpace(uri)
	if title == "" || uri == "" {
		return nil, ErrInvalidRequest
	}
	if err := g.wait(ctx); err != nil {
		return nil, err
	}

	messages := []ChatMessage{
		systemMessage("You are a research assistant. Answer with a single JSON object and nothing else."),
		userMessage(analyzePrompt(title, uri)),
	}
	raw, err := g.llm.CompleteJSON(ctx, g.cfg, messages)
	if err != nil {
		return nil, err
	}

	var parsed AnalyzeResponse
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("parse analysis json failed: %w", err)
	}
	analysis := parsed.ToAnalysis()
	if analysis.Summary == "" {
		return nil, ErrEmptyGeneration
	}
	return &analysis, nil
}

func (g *GenerationService) Synthesize(ctx context.Context, docs []model.Document, folderName string) (string, error) {
	if len(docs) == 0 {
		return "", ErrInvalidRequest
	}
	if err := g.wait(ctx); err != nil {
		return "", err
	}
	messages := []ChatMessage{
		systemMessage("You are a research assistant."),
		userMessage(synthesisPrompt(docs, folderName)),
	}
	text, err := g.llm.Complete(ctx, g.cfg, messages)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyGeneration
	}
	return text, nil
}

// Research streams a research summary for topic. onChunk receives the text
// accumulated so far.
func (g *GenerationService) Research(
	ctx context.Context,
	topic string,
	filters model.SearchFilters,
	onChunk func(text string) error,
) (*ResearchResult, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, ErrInvalidRequest
	}
	if err := g.wait(ctx); err != nil {
		return nil, err
	}

	messages := []ChatMessage{
		systemMessage("You are a research assistant that cites its sources as markdown links."),
		userMessage(researchPrompt(topic, filters)),
	}
	var acc strings.Builder
	full, err := g.llm.StreamComplete(ctx, g.cfg, messages, func(chunk string) error {
		acc.WriteString(chunk)
		if onChunk == nil {
			return nil
		}
		return onChunk(acc.String())
	})
	if err != nil {
		return nil, err
	}
	return &ResearchResult{
		Text:    full,
		Sources: ExtractSources(full),
	}, nil
}

func (g *GenerationService) wait(ctx context.Context) error {
	if g.limiter == nil {
		return nil
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait generation rate limit failed: %w", err)
	}
	return nil
}

func analyzePrompt(title, uri string) string {
	return fmt.Sprintf(`Analyze the following research source:
Title: %s
URL: %s

Please provide:
1. A concise summary of the paper/article (approx 150 words).
2. A list of 3-5 key findings or takeaways.
3. Extract citation metadata if available (Authors, Publication Year, Publisher/Journal, DOI, and Page Count).

Output in JSON format with keys: "summary" (string), "findings" (array of strings), and "citationMetadata" (object with "authors" (array of strings), "publicationDate", "publisher", "doi" (strings) and "pageCount" (integer)).`, title, uri)
}

func synthesisPrompt(docs []model.Document, folderName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "I have a collection of papers in a folder named %q.\n\nHere is the data for the papers:\n", folderName)
	for i, d := range docs {
		summary := d.Summary
		if summary == "" {
			summary = "No summary available"
		}
		findings := "N/A"
		if len(d.KeyFindings) > 0 {
			findings = strings.Join(d.KeyFindings, "; ")
		}
		fmt.Fprintf(&b, "\n[Paper %d]\nTitle: %s\nSummary: %s\nKey Findings: %s\n", i+1, d.Title, summary, findings)
	}
	b.WriteString(`
Please write a "Literature Synthesis" for this collection.
1. Identify common themes or trends across these papers.
2. Highlight any contradictions or diverse viewpoints.
3. Summarize the collective knowledge found here.

Keep it concise (under 250 words) but insightful. Use Markdown formatting.`)
	return b.String()
}

func researchPrompt(topic string, filters model.SearchFilters) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Perform a comprehensive research search on the topic: %q.", topic)
	if !filters.Empty() {
		b.WriteString("\nStrictly prioritize sources matching these criteria:")
		if filters.YearStart != "" {
			fmt.Fprintf(&b, "\n- Published after: %s", filters.YearStart)
		}
		if filters.YearEnd != "" {
			fmt.Fprintf(&b, "\n- Published before: %s", filters.YearEnd)
		}
		if filters.Author != "" {
			fmt.Fprintf(&b, "\n- Author: %s", filters.Author)
		}
		if filters.Journal != "" {
			fmt.Fprintf(&b, "\n- Journal/Conference: %s", filters.Journal)
		}
	}
	b.WriteString(`
Focus on finding academic papers, technical articles, or reputable sources.
Summarize the current state of the art or key discussions around this topic.
Do not format as JSON. Write a clear, structured research summary and cite every source as a markdown link [title](url).`)
	return b.String()
}

var markdownLink = regexp.MustCompile(`\[([^\]]+)\]\((https?://[^\s)]+)\)`)

// ExtractSources collects the distinct markdown links of text, in order.
func ExtractSources(text string) []model.GroundingSource {
	matches := markdownLink.FindAllStringSubmatch(text, -1)
	seen := make(map[string]struct{}, len(matches))
	out := make([]model.GroundingSource, 0, len(matches))
	for _, m := range matches {
		uri := strings.TrimSpace(m[2])
		if _, ok := seen[uri]; ok {
			continue
		}
		seen[uri] = struct{}{}
		out = append(out, model.GroundingSource{Title: strings.TrimSpace(m[1]), URI: uri})
	}
	return out
}

func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
