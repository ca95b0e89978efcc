// Package enrich wraps the generation service for single-document analysis
// and folder-level synthesis.
package enrich

import (
	"context"
	"errors"
	"log"
	"strings"

	"lumina-research/internal/model"
)

const (
	FailedSummary = "Could not generate summary at this time."
	FailedFinding = "Analysis failed."
)

var ErrNoDocuments = errors.New("no analyzed documents to synthesize")

type Analyzer interface {
	Analyze(ctx context.Context, title, uri string) (*model.Analysis, error)
}

type SynthesisBackend interface {
	Synthesize(ctx context.Context, docs []model.Document, folderName string) (string, error)
}

// Enricher never fails: any error from the backend becomes FallbackAnalysis.
type Enricher struct {
	backend Analyzer
}

func NewEnricher(backend Analyzer) *Enricher {
	return &Enricher{backend: backend}
}

func (e *Enricher) Analyze(ctx context.Context, title, uri string) model.Analysis {
	title = strings.TrimSpace(title)
	uri = strings.TrimSpace(uri)
	if title == "" || uri == "" || e.backend == nil {
		return FallbackAnalysis()
	}

	result, err := e.backend.Analyze(ctx, title, uri)
	if err != nil {
		log.Printf("analyze %q failed: %v", uri, err)
		return FallbackAnalysis()
	}
	if result == nil || strings.TrimSpace(result.Summary) == "" {
		log.Printf("analyze %q returned no summary", uri)
		return FallbackAnalysis()
	}
	return normalize(*result)
}

// FallbackAnalysis is the degraded result committed when analysis fails.
func FallbackAnalysis() model.Analysis {
	return model.Analysis{
		Summary:  FailedSummary,
		Findings: []string{FailedFinding},
		CitationMetadata: model.CitationMetadata{
			Authors:         []string{},
			PublicationDate: "",
			Publisher:       "",
		},
	}
}

func normalize(a model.Analysis) model.Analysis {
	if a.Findings == nil {
		a.Findings = []string{}
	}
	if a.CitationMetadata.Authors == nil {
		a.CitationMetadata.Authors = []string{}
	}
	return a
}

// Synthesizer produces one prose synthesis for a batch of analyzed documents.
// It does not filter its input and returns backend errors as-is.
type Synthesizer struct {
	backend SynthesisBackend
}

func NewSynthesizer(backend SynthesisBackend) *Synthesizer {
	return &Synthesizer{backend: backend}
}

func (s *Synthesizer) Synthesize(ctx context.Context, docs []model.Document, folderName string) (string, error) {
	if len(docs) == 0 {
		return "", ErrNoDocuments
	}
	text, err := s.backend.Synthesize(ctx, docs, folderName)
	if err != nil {
		return "", err
	}
	return text, nil
}
