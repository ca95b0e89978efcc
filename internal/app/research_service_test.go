package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lumina-research/internal/ai"
	"lumina-research/internal/library"
	"lumina-research/internal/model"
)

type stubResearcher struct {
	chunks []string
	result *ai.ResearchResult
	err    error
	topic  string
}

func (r *stubResearcher) Research(_ context.Context, topic string, _ model.SearchFilters, onChunk func(string) error) (*ai.ResearchResult, error) {
	r.topic = topic
	for _, c := range r.chunks {
		if onChunk != nil {
			if err := onChunk(c); err != nil {
				return nil, err
			}
		}
	}
	return r.result, r.err
}

func TestResearch_FlagsSavedSources(t *testing.T) {
	store := library.NewStore(nil)
	store.AddDocument(library.Source{Title: "Saved", URI: "https://saved"}, "")
	researcher := &stubResearcher{
		chunks: []string{"Quantum", "Quantum error correction"},
		result: &ai.ResearchResult{
			Text: "Quantum error correction",
			Sources: []model.GroundingSource{
				{Title: "Saved", URI: "https://saved"},
				{Title: "New", URI: "https://new"},
			},
		},
	}
	svc := NewResearchService(researcher, library.NewRegistry(store))

	var streamed []string
	out, err := svc.Research(context.Background(), ResearchInput{Topic: "  qec  "}, func(text string) error {
		streamed = append(streamed, text)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "qec", researcher.topic)
	assert.Equal(t, []string{"Quantum", "Quantum error correction"}, streamed)
	assert.False(t, out.Failed)
	assert.Equal(t, []ResearchSource{
		{Title: "Saved", URI: "https://saved", Saved: true},
		{Title: "New", URI: "https://new", Saved: false},
	}, out.Sources)
}

func TestResearch_FailureStreamsFixedMessage(t *testing.T) {
	svc := NewResearchService(&stubResearcher{err: errors.New("401 unauthorized")}, library.NewRegistry(library.NewStore(nil)))

	var streamed []string
	out, err := svc.Research(context.Background(), ResearchInput{Topic: "qec"}, func(text string) error {
		streamed = append(streamed, text)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, out.Failed)
	assert.Equal(t, ResearchFailedMessage, out.Text)
	assert.Equal(t, []string{ResearchFailedMessage}, streamed)
	assert.Empty(t, out.Sources)
}

func TestResearch_EmptyTopic(t *testing.T) {
	svc := NewResearchService(&stubResearcher{}, library.NewRegistry(library.NewStore(nil)))
	_, err := svc.Research(context.Background(), ResearchInput{Topic: " "}, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
