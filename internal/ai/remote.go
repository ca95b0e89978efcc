package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"lumina-research/internal/model"
)

// RemoteGenerator calls a generation service over its JSON endpoints
// (POST {base}/analyze, /research, /synthesize).
type RemoteGenerator struct {
	baseURL    string
	httpClient *http.Client
}

func NewRemoteGenerator(baseURL string, timeout time.Duration) *RemoteGenerator {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &RemoteGenerator{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (g *RemoteGenerator) Analyze(ctx context.Context, title, uri string) (*model.Analysis, error) {
	var out AnalyzeResponse
	if err := g.call(ctx, "/analyze", AnalyzeRequest{Title: title, URI: uri}, &out); err != nil {
		return nil, err
	}
	analysis := out.ToAnalysis()
	if analysis.Summary == "" {
		return nil, ErrEmptyGeneration
	}
	return &analysis, nil
}

func (g *RemoteGenerator) Synthesize(ctx context.Context, docs []model.Document, folderName string) (string, error) {
	req := SynthesizeRequest{FolderName: folderName, Documents: make([]SynthesisDocument, 0, len(docs))}
	for _, d := range docs {
		req.Documents = append(req.Documents, SynthesisDocument{
			Title:       d.Title,
			Summary:     d.Summary,
			KeyFindings: d.KeyFindings,
		})
	}
	var out SynthesizeResponse
	if err := g.call(ctx, "/synthesize", req, &out); err != nil {
		return "", err
	}
	text := strings.TrimSpace(out.Synthesis)
	if text == "" {
		return "", ErrEmptyGeneration
	}
	return text, nil
}

// Research is not streamed by the remote contract; onChunk is called once
// with the full text.
func (g *RemoteGenerator) Research(
	ctx context.Context,
	topic string,
	filters model.SearchFilters,
	onChunk func(text string) error,
) (*ResearchResult, error) {
	var out ResearchResponse
	if err := g.call(ctx, "/research", ResearchRequest{Topic: topic, Filters: filters}, &out); err != nil {
		return nil, err
	}
	if onChunk != nil && out.Text != "" {
		if err := onChunk(out.Text); err != nil {
			return nil, err
		}
	}
	result := &ResearchResult{Text: out.Text}
	if out.GroundingMetadata != nil {
		for _, c := range out.GroundingMetadata.GroundingChunks {
			if c.Web.URI == "" || c.Web.Title == "" {
				continue
			}
			result.Sources = append(result.Sources, model.GroundingSource{Title: c.Web.Title, URI: c.Web.URI})
		}
	}
	if len(result.Sources) == 0 {
		result.Sources = ExtractSources(out.Text)
	}
	return result, nil
}

// GroundingFromSources renders sources in the groundingMetadata shape.
func GroundingFromSources(sources []model.GroundingSource) *GroundingMetadata {
	if len(sources) == 0 {
		return nil
	}
	meta := &GroundingMetadata{GroundingChunks: make([]GroundingChunk, 0, len(sources))}
	for _, s := range sources {
		var c GroundingChunk
		c.Web.URI = s.URI
		c.Web.Title = s.Title
		meta.GroundingChunks = append(meta.GroundingChunks, c)
	}
	return meta
}

func (g *RemoteGenerator) call(ctx context.Context, path string, in, out interface{}) error {
	bodyBytes, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal generation request failed: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("build generation request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("generation request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read generation response failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		var apiErr ErrorResponse
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("generation response status %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("generation response status %d: %s", resp.StatusCode, string(raw))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse generation json failed: %w", err)
	}
	return nil
}
