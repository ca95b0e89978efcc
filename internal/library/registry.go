package library

import (
	"strings"

	"lumina-research/internal/model"
)

// Registry answers "is this source already saved". It keeps no state of its
// own: every read projects the URIs currently in the store.
type Registry struct {
	store *Store
}

func NewRegistry(store *Store) *Registry {
	return &Registry{store: store}
}

func (r *Registry) Contains(uri string) bool {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return false
	}
	for _, known := range r.store.URIs() {
		if known == uri {
			return true
		}
	}
	return false
}

// Track saves the source unless its URI is already known, in which case the
// existing document is returned with created=false.
func (r *Registry) Track(src Source, folderID string) (model.Document, bool) {
	return r.store.AddDocument(src, folderID)
}

// Saved marks which of the given sources are already in the library.
func (r *Registry) Saved(sources []model.GroundingSource) map[string]bool {
	known := make(map[string]struct{})
	for _, uri := range r.store.URIs() {
		known[uri] = struct{}{}
	}
	out := make(map[string]bool, len(sources))
	for _, src := range sources {
		uri := strings.TrimSpace(src.URI)
		_, ok := known[uri]
		out[uri] = ok
	}
	return out
}
