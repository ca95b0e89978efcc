package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lumina-research/internal/model"
)

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []ChatMessage     `json:"messages"`
	Stream         bool              `json:"stream"`
	ResponseFormat map[string]string `json:"response_format"`
}

func newFakeLLM(t *testing.T, handle func(req chatRequest) (int, string)) (*GenerationService, *[]chatRequest) {
	t.Helper()
	var seen []chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		seen = append(seen, req)
		status, body := handle(req)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	svc := NewGenerationService(
		NewOpenAICompatibleClient(5*time.Second),
		ChatConfig{BaseURL: srv.URL + "/v1/", APIKey: "test-key", Model: "test-model"},
		nil,
	)
	return svc, &seen
}

func completion(content string) string {
	payload, _ := json.Marshal(map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"content": content}},
		},
	})
	return string(payload)
}

func TestGenerationService_Analyze(t *testing.T) {
	content := "```json\n" + `{
		"summary": "A study of qubits.",
		"findings": ["Finding one", " ", "Finding two"],
		"citationMetadata": {"authors": "Ada Lovelace", "publicationDate": 2021, "publisher": "Nature", "pageCount": "12"}
	}` + "\n```"
	svc, seen := newFakeLLM(t, func(chatRequest) (int, string) {
		return http.StatusOK, completion(content)
	})

	got, err := svc.Analyze(context.Background(), "Qubits", "https://x/1")
	require.NoError(t, err)
	assert.Equal(t, "A study of qubits.", got.Summary)
	assert.Equal(t, []string{"Finding one", "Finding two"}, got.Findings)
	assert.Equal(t, []string{"Ada Lovelace"}, got.CitationMetadata.Authors)
	assert.Equal(t, "2021", got.CitationMetadata.PublicationDate)
	assert.Equal(t, "Nature", got.CitationMetadata.Publisher)
	assert.Equal(t, 12, got.CitationMetadata.PageCount)

	require.Len(t, *seen, 1)
	req := (*seen)[0]
	assert.Equal(t, "test-model", req.Model)
	assert.Equal(t, "json_object", req.ResponseFormat["type"])
	assert.Contains(t, req.Messages[1].Content, "Title: Qubits")
	assert.Contains(t, req.Messages[1].Content, "URL: https://x/1")
}

func TestGenerationService_Analyze_MissingFieldsNormalized(t *testing.T) {
	svc, _ := newFakeLLM(t, func(chatRequest) (int, string) {
		return http.StatusOK, completion(`{"summary": "Only a summary."}`)
	})

	got, err := svc.Analyze(context.Background(), "T", "https://x/1")
	require.NoError(t, err)
	assert.NotNil(t, got.Findings)
	assert.Empty(t, got.Findings)
	assert.NotNil(t, got.CitationMetadata.Authors)
}

func TestGenerationService_Analyze_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{"error":"boom"}`},
		{name: "not json", status: http.StatusOK, body: completion("I cannot do that")},
		{name: "empty summary", status: http.StatusOK, body: completion(`{"summary": "  ", "findings": []}`)},
		{name: "no choices", status: http.StatusOK, body: `{"choices": []}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newFakeLLM(t, func(chatRequest) (int, string) { return tt.status, tt.body })
			_, err := svc.Analyze(context.Background(), "T", "https://x/1")
			assert.Error(t, err)
		})
	}
}

func TestGenerationService_Analyze_RejectsEmptyInput(t *testing.T) {
	svc, seen := newFakeLLM(t, func(chatRequest) (int, string) { return http.StatusOK, completion("{}") })

	_, err := svc.Analyze(context.Background(), "", "https://x/1")
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Empty(t, *seen)
}

func TestGenerationService_Synthesize(t *testing.T) {
	svc, seen := newFakeLLM(t, func(chatRequest) (int, string) {
		return http.StatusOK, completion("  ## Themes\nBoth papers agree.  ")
	})

	docs := []model.Document{
		{Title: "A", Summary: "sum a", KeyFindings: []string{"f1", "f2"}},
		{Title: "B", Summary: "sum b"},
	}
	got, err := svc.Synthesize(context.Background(), docs, "Quantum Physics")
	require.NoError(t, err)
	assert.Equal(t, "## Themes\nBoth papers agree.", got)

	prompt := (*seen)[0].Messages[1].Content
	assert.Contains(t, prompt, `"Quantum Physics"`)
	assert.Contains(t, prompt, "[Paper 1]\nTitle: A\nSummary: sum a\nKey Findings: f1; f2")
	assert.Contains(t, prompt, "[Paper 2]\nTitle: B\nSummary: sum b\nKey Findings: N/A")
}

func TestGenerationService_Synthesize_EmptyOutput(t *testing.T) {
	svc, _ := newFakeLLM(t, func(chatRequest) (int, string) { return http.StatusOK, completion("   ") })

	_, err := svc.Synthesize(context.Background(), []model.Document{{Title: "A", Summary: "s"}}, "F")
	assert.ErrorIs(t, err, ErrEmptyGeneration)
}

func TestGenerationService_Research_Streams(t *testing.T) {
	chunks := []string{"Quantum error correction ", "is advancing. See ", "[Surface codes](https://x/1) and [Surface codes](https://x/1)."}
	svc, seen := newFakeLLM(t, func(req chatRequest) (int, string) {
		var b strings.Builder
		for _, c := range chunks {
			payload, _ := json.Marshal(map[string]interface{}{
				"choices": []map[string]interface{}{{"delta": map[string]string{"content": c}}},
			})
			fmt.Fprintf(&b, "data: %s\n\n", payload)
		}
		b.WriteString("data: [DONE]\n\n")
		return http.StatusOK, b.String()
	})

	var partials []string
	got, err := svc.Research(context.Background(), "error correction", model.SearchFilters{YearStart: "2020", Author: "Gottesman"}, func(text string) error {
		partials = append(partials, text)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, strings.Join(chunks, ""), got.Text)
	require.Len(t, partials, 3)
	assert.Equal(t, got.Text, partials[2])
	assert.Equal(t, []model.GroundingSource{{Title: "Surface codes", URI: "https://x/1"}}, got.Sources)

	prompt := (*seen)[0].Messages[1].Content
	assert.True(t, (*seen)[0].Stream)
	assert.Contains(t, prompt, "- Published after: 2020")
	assert.Contains(t, prompt, "- Author: Gottesman")
	assert.NotContains(t, prompt, "Journal/Conference")
}

func TestExtractSources(t *testing.T) {
	text := "See [A](https://a.example/1), [B](http://b.example/x?y=1) and [not a link](ftp://c)."
	assert.Equal(t, []model.GroundingSource{
		{Title: "A", URI: "https://a.example/1"},
		{Title: "B", URI: "http://b.example/x?y=1"},
	}, ExtractSources(text))
	assert.Empty(t, ExtractSources("nothing here"))
}
