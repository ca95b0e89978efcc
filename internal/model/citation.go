package model

// CitationMetadata is whatever bibliographic data the generation service could
// infer. Every field may be missing.
type CitationMetadata struct {
	Authors         []string `json:"authors"`
	PublicationDate string   `json:"publicationDate"`
	Publisher       string   `json:"publisher"`
	DOI             string   `json:"doi,omitempty"`
	PageCount       int      `json:"pageCount,omitempty"`
}

func (m CitationMetadata) Clone() CitationMetadata {
	out := m
	out.Authors = append([]string{}, m.Authors...)
	return out
}

// FirstAuthor returns the first non-empty author, or "".
func (m *CitationMetadata) FirstAuthor() string {
	if m == nil {
		return ""
	}
	for _, a := range m.Authors {
		if a != "" {
			return a
		}
	}
	return ""
}
