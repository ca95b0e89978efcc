package model

import (
	"strings"
	"time"
)

// Document is a saved research source plus its optional AI analysis and notes.
// Summary, KeyFindings and CitationMetadata are written together by a single
// enrichment commit.
type Document struct {
	ID               string            `gorm:"primaryKey;size:36" json:"id"`
	FolderID         string            `gorm:"size:128;not null;index" json:"folder_id"`
	Title            string            `gorm:"size:512;not null" json:"title"`
	URI              string            `gorm:"size:1024;not null" json:"uri"`
	Snippet          string            `gorm:"type:text" json:"snippet,omitempty"`
	UserNotes        string            `gorm:"type:text" json:"user_notes"`
	Summary          string            `gorm:"type:text" json:"summary,omitempty"`
	KeyFindings      []string          `gorm:"type:json;serializer:json" json:"key_findings"`
	CitationMetadata *CitationMetadata `gorm:"type:json;serializer:json" json:"citation_metadata,omitempty"`
	AddedAt          time.Time         `gorm:"not null;index" json:"added_at"`
}

// Analyzed reports whether the document carries a non-empty summary.
func (d Document) Analyzed() bool {
	return strings.TrimSpace(d.Summary) != ""
}

// Clone returns a deep copy so callers never share slices with the store.
func (d Document) Clone() Document {
	out := d
	if d.KeyFindings != nil {
		out.KeyFindings = append([]string{}, d.KeyFindings...)
	}
	if d.CitationMetadata != nil {
		meta := d.CitationMetadata.Clone()
		out.CitationMetadata = &meta
	}
	return out
}

// Analysis is the normalized result of enriching one document.
type Analysis struct {
	Summary          string           `json:"summary"`
	Findings         []string         `json:"findings"`
	CitationMetadata CitationMetadata `json:"citationMetadata"`
}

// GroundingSource is a web source surfaced by topic research.
type GroundingSource struct {
	Title   string `json:"title"`
	URI     string `json:"uri"`
	Snippet string `json:"snippet,omitempty"`
}

type SearchFilters struct {
	YearStart string `json:"yearStart,omitempty"`
	YearEnd   string `json:"yearEnd,omitempty"`
	Author    string `json:"author,omitempty"`
	Journal   string `json:"journal,omitempty"`
}

// Empty reports whether no filter is set.
func (f SearchFilters) Empty() bool {
	return f.YearStart == "" && f.YearEnd == "" && f.Author == "" && f.Journal == ""
}
