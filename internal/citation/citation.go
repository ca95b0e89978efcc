// Package citation renders library documents as BibTeX or APA references.
package citation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"lumina-research/internal/model"
)

type Format string

const (
	FormatBibTeX Format = "bibtex"
	FormatAPA    Format = "apa"
)

var (
	ErrUnknownFormat = errors.New("unknown citation format")
	ErrNoDocuments   = errors.New("no documents to export")
)

// File is a rendered export ready to be served as a download.
type File struct {
	Content     string
	Filename    string
	ContentType string
}

var (
	nonLetters = regexp.MustCompile(`[^a-zA-Z]`)
	yearRe     = regexp.MustCompile(`\d{4}`)
)

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatBibTeX, "bib":
		return FormatBibTeX, nil
	case FormatAPA:
		return FormatAPA, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

func Export(docs []model.Document, format Format) (*File, error) {
	if len(docs) == 0 {
		return nil, ErrNoDocuments
	}
	switch format {
	case FormatBibTeX:
		return &File{Content: ToBibTeX(docs), Filename: "citations.bib", ContentType: "text/plain; charset=utf-8"}, nil
	case FormatAPA:
		return &File{Content: ToAPA(docs), Filename: "citations.txt", ContentType: "text/plain; charset=utf-8"}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// ToBibTeX renders one @article entry per document, separated by a blank line.
func ToBibTeX(docs []model.Document) string {
	entries := make([]string, 0, len(docs))
	for _, doc := range docs {
		meta := doc.CitationMetadata
		if meta == nil {
			meta = &model.CitationMetadata{}
		}

		var b strings.Builder
		fmt.Fprintf(&b, "@article{%s,\n", bibKey(doc))
		fmt.Fprintf(&b, "  title = {%s},\n", doc.Title)
		fmt.Fprintf(&b, "  author = {%s},\n", orDefault(strings.Join(nonEmpty(meta.Authors), " and "), "Unknown"))
		fmt.Fprintf(&b, "  journal = {%s},\n", orDefault(meta.Publisher, "Unknown Publisher"))
		fmt.Fprintf(&b, "  year = {%s},\n", orDefault(meta.PublicationDate, "n.d."))
		if meta.DOI != "" {
			fmt.Fprintf(&b, "  doi = {%s},\n", meta.DOI)
		}
		if meta.PageCount > 0 {
			fmt.Fprintf(&b, "  pages = {%d},\n", meta.PageCount)
		}
		fmt.Fprintf(&b, "  url = {%s}\n}", doc.URI)
		entries = append(entries, b.String())
	}
	return strings.Join(entries, "\n\n")
}

// ToAPA renders one reference per document:
// Authors. (Year). Title. Publisher. URL
func ToAPA(docs []model.Document) string {
	entries := make([]string, 0, len(docs))
	for _, doc := range docs {
		meta := doc.CitationMetadata
		if meta == nil {
			meta = &model.CitationMetadata{}
		}
		authors := orDefault(strings.Join(nonEmpty(meta.Authors), ", "), "Unknown Author")
		year := "(n.d.)"
		if meta.PublicationDate != "" {
			year = "(" + meta.PublicationDate + ")"
		}
		source := orDefault(meta.Publisher, "Retrieved from")
		entries = append(entries, fmt.Sprintf("%s. %s. %s. %s. %s", authors, year, doc.Title, source, doc.URI))
	}
	return strings.Join(entries, "\n\n")
}

// bibKey is the first author's last name, the publication year and the first
// word of the title, e.g. "Vaswani2017Attention".
func bibKey(doc model.Document) string {
	surname := "unknown"
	if doc.CitationMetadata != nil {
		if first := strings.Fields(doc.CitationMetadata.FirstAuthor()); len(first) > 0 {
			surname = first[len(first)-1]
		}
	}

	year := "nd"
	if doc.CitationMetadata != nil {
		if y := yearRe.FindString(doc.CitationMetadata.PublicationDate); y != "" {
			year = y
		}
	}

	word := ""
	if fields := strings.Fields(doc.Title); len(fields) > 0 {
		word = nonLetters.ReplaceAllString(fields[0], "")
	}
	return nonLetters.ReplaceAllString(surname, "") + year + word
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
