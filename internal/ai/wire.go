package ai

import (
	"encoding/json"
	"strconv"
	"strings"

	"lumina-research/internal/model"
)

// Request and response bodies of the generation service endpoints.

type AnalyzeRequest struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

type AnalyzeResponse struct {
	Summary          string          `json:"summary"`
	Findings         []string        `json:"findings"`
	CitationMetadata citationPayload `json:"citationMetadata"`
}

type ResearchRequest struct {
	Topic   string              `json:"topic"`
	Filters model.SearchFilters `json:"filters"`
}

type ResearchResponse struct {
	Text              string             `json:"text"`
	GroundingMetadata *GroundingMetadata `json:"groundingMetadata,omitempty"`
}

type GroundingMetadata struct {
	GroundingChunks []GroundingChunk `json:"groundingChunks"`
}

type GroundingChunk struct {
	Web struct {
		URI   string `json:"uri"`
		Title string `json:"title"`
	} `json:"web"`
}

type SynthesizeRequest struct {
	Documents  []SynthesisDocument `json:"documents"`
	FolderName string              `json:"folderName"`
}

type SynthesisDocument struct {
	Title       string   `json:"title"`
	Summary     string   `json:"summary"`
	KeyFindings []string `json:"keyFindings"`
}

type SynthesizeResponse struct {
	Synthesis string `json:"synthesis"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// citationPayload accepts the loose shapes models produce: years as numbers,
// page counts as strings, a single author as a plain string.
type citationPayload struct {
	Authors         flexStrings `json:"authors"`
	PublicationDate flexString  `json:"publicationDate"`
	Publisher       flexString  `json:"publisher"`
	DOI             flexString  `json:"doi,omitempty"`
	PageCount       flexInt     `json:"pageCount,omitempty"`
}

func (p citationPayload) toModel() model.CitationMetadata {
	authors := make([]string, 0, len(p.Authors))
	for _, a := range p.Authors {
		if a = strings.TrimSpace(a); a != "" {
			authors = append(authors, a)
		}
	}
	return model.CitationMetadata{
		Authors:         authors,
		PublicationDate: strings.TrimSpace(string(p.PublicationDate)),
		Publisher:       strings.TrimSpace(string(p.Publisher)),
		DOI:             strings.TrimSpace(string(p.DOI)),
		PageCount:       int(p.PageCount),
	}
}

func citationFromModel(m model.CitationMetadata) citationPayload {
	return citationPayload{
		Authors:         flexStrings(append([]string{}, m.Authors...)),
		PublicationDate: flexString(m.PublicationDate),
		Publisher:       flexString(m.Publisher),
		DOI:             flexString(m.DOI),
		PageCount:       flexInt(m.PageCount),
	}
}

// ToAnalysis normalizes a response into an analysis with non-nil slices.
func (r AnalyzeResponse) ToAnalysis() model.Analysis {
	findings := make([]string, 0, len(r.Findings))
	for _, f := range r.Findings {
		if f = strings.TrimSpace(f); f != "" {
			findings = append(findings, f)
		}
	}
	return model.Analysis{
		Summary:          strings.TrimSpace(r.Summary),
		Findings:         findings,
		CitationMetadata: r.CitationMetadata.toModel(),
	}
}

func AnalyzeResponseFrom(a model.Analysis) AnalyzeResponse {
	findings := a.Findings
	if findings == nil {
		findings = []string{}
	}
	return AnalyzeResponse{
		Summary:          a.Summary,
		Findings:         findings,
		CitationMetadata: citationFromModel(a.CitationMetadata),
	}
}

type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		*s = ""
	case string:
		*s = flexString(t)
	case float64:
		*s = flexString(strconv.FormatFloat(t, 'f', -1, 64))
	default:
		*s = ""
	}
	return nil
}

type flexInt int

func (n *flexInt) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case float64:
		*n = flexInt(t)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(t))
		if err == nil {
			*n = flexInt(parsed)
		}
	}
	return nil
}

type flexStrings []string

func (s *flexStrings) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case string:
		*s = flexStrings{t}
	case []interface{}:
		out := make(flexStrings, 0, len(t))
		for _, item := range t {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		*s = out
	default:
		*s = flexStrings{}
	}
	return nil
}
