package citation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lumina-research/internal/model"
)

func attention() model.Document {
	return model.Document{
		ID:    "doc-1",
		Title: "Attention Is All You Need",
		URI:   "https://arxiv.org/abs/1706.03762",
		CitationMetadata: &model.CitationMetadata{
			Authors:         []string{"Ashish Vaswani", "Noam Shazeer"},
			PublicationDate: "2017",
			Publisher:       "NeurIPS",
			DOI:             "10.48550/arXiv.1706.03762",
		},
	}
}

func bare() model.Document {
	return model.Document{ID: "doc-2", Title: "(Untitled) notes", URI: "https://example.com/x"}
}

func TestToBibTeX(t *testing.T) {
	got := ToBibTeX([]model.Document{attention()})
	want := "@article{Vaswani2017Attention,\n" +
		"  title = {Attention Is All You Need},\n" +
		"  author = {Ashish Vaswani and Noam Shazeer},\n" +
		"  journal = {NeurIPS},\n" +
		"  year = {2017},\n" +
		"  doi = {10.48550/arXiv.1706.03762},\n" +
		"  url = {https://arxiv.org/abs/1706.03762}\n}"
	assert.Equal(t, want, got)
}

func TestToBibTeX_MissingMetadataUsesPlaceholders(t *testing.T) {
	got := ToBibTeX([]model.Document{bare()})
	assert.Contains(t, got, "@article{unknownndUntitled,")
	assert.Contains(t, got, "author = {Unknown}")
	assert.Contains(t, got, "journal = {Unknown Publisher}")
	assert.Contains(t, got, "year = {n.d.}")
	assert.NotContains(t, got, "doi")
}

func TestToBibTeX_KeyUsesYearFromFullDate(t *testing.T) {
	doc := attention()
	doc.CitationMetadata.PublicationDate = "June 12, 2017"
	assert.Contains(t, ToBibTeX([]model.Document{doc}), "@article{Vaswani2017Attention,")
}

func TestToAPA(t *testing.T) {
	got := ToAPA([]model.Document{attention(), bare()})
	assert.Equal(t,
		"Ashish Vaswani, Noam Shazeer. (2017). Attention Is All You Need. NeurIPS. https://arxiv.org/abs/1706.03762\n\n"+
			"Unknown Author. (n.d.). (Untitled) notes. Retrieved from. https://example.com/x",
		got)
}

func TestExport(t *testing.T) {
	docs := []model.Document{attention()}

	bib, err := Export(docs, FormatBibTeX)
	require.NoError(t, err)
	assert.Equal(t, "citations.bib", bib.Filename)
	assert.Equal(t, ToBibTeX(docs), bib.Content)

	apa, err := Export(docs, FormatAPA)
	require.NoError(t, err)
	assert.Equal(t, "citations.txt", apa.Filename)

	_, err = Export(nil, FormatAPA)
	assert.ErrorIs(t, err, ErrNoDocuments)

	_, err = Export(docs, Format("ris"))
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
		err  bool
	}{
		{in: "bibtex", want: FormatBibTeX},
		{in: " BIB ", want: FormatBibTeX},
		{in: "APA", want: FormatAPA},
		{in: "mla", err: true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.err {
			assert.ErrorIs(t, err, ErrUnknownFormat, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}
