package repository

import "lumina-research/internal/model"

// LibraryMirror is the mysql copy of the library written by the persist
// worker and read back on start.
type LibraryMirror struct {
	Documents *DocumentRepository
	Folders   *FolderRepository
}

func NewLibraryMirror(docs *DocumentRepository, folders *FolderRepository) *LibraryMirror {
	return &LibraryMirror{Documents: docs, Folders: folders}
}

func (m *LibraryMirror) SaveDocument(doc *model.Document) error {
	return m.Documents.Save(doc)
}

func (m *LibraryMirror) DeleteDocument(id string) error {
	return m.Documents.Delete(id)
}

func (m *LibraryMirror) SaveFolder(folder *model.Folder) error {
	return m.Folders.Save(folder)
}

// Load returns every persisted folder and document.
func (m *LibraryMirror) Load() ([]model.Folder, []model.Document, error) {
	folders, err := m.Folders.List()
	if err != nil {
		return nil, nil, err
	}
	docs, err := m.Documents.List()
	if err != nil {
		return nil, nil, err
	}
	return folders, docs, nil
}
