package app

import (
	"context"
	"log"
	"strings"

	"lumina-research/internal/ai"
	"lumina-research/internal/library"
	"lumina-research/internal/model"
)

// ResearchFailedMessage replaces the research text when the generation
// service fails.
const ResearchFailedMessage = "An error occurred while researching. Please check your API key or try again."

// Researcher is satisfied by ai.GenerationService and ai.RemoteGenerator.
type Researcher interface {
	Research(ctx context.Context, topic string, filters model.SearchFilters, onChunk func(text string) error) (*ai.ResearchResult, error)
}

type ResearchService struct {
	researcher Researcher
	registry   *library.Registry
}

type ResearchInput struct {
	Topic   string
	Filters model.SearchFilters
}

type ResearchSource struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
	Saved bool   `json:"saved"`
}

type ResearchOutput struct {
	Text    string           `json:"text"`
	Sources []ResearchSource `json:"sources"`
	Failed  bool             `json:"failed"`
}

func NewResearchService(researcher Researcher, registry *library.Registry) *ResearchService {
	return &ResearchService{researcher: researcher, registry: registry}
}

// Research streams the accumulated answer text to onChunk and returns the
// cited sources flagged with whether they are already saved. A failing
// generation service is reported through ResearchFailedMessage rather than
// an error.
func (s *ResearchService) Research(ctx context.Context, input ResearchInput, onChunk func(text string) error) (*ResearchOutput, error) {
	topic := strings.TrimSpace(input.Topic)
	if topic == "" {
		return nil, ErrInvalidInput
	}

	result, err := s.researcher.Research(ctx, topic, input.Filters, onChunk)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Printf("research %q failed: %v", topic, err)
		if onChunk != nil {
			if err := onChunk(ResearchFailedMessage); err != nil {
				return nil, err
			}
		}
		return &ResearchOutput{Text: ResearchFailedMessage, Sources: []ResearchSource{}, Failed: true}, nil
	}

	return &ResearchOutput{Text: result.Text, Sources: s.MarkSaved(result.Sources)}, nil
}

// MarkSaved flags each source that is already in the library.
func (s *ResearchService) MarkSaved(sources []model.GroundingSource) []ResearchSource {
	saved := s.registry.Saved(sources)
	out := make([]ResearchSource, 0, len(sources))
	for _, src := range sources {
		uri := strings.TrimSpace(src.URI)
		out = append(out, ResearchSource{Title: src.Title, URI: uri, Saved: saved[uri]})
	}
	return out
}
