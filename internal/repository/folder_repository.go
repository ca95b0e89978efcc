package repository

import (
	"fmt"

	"gorm.io/gorm"

	"lumina-research/internal/model"
)

type FolderRepository struct {
	db *gorm.DB
}

func NewFolderRepository(db *gorm.DB) *FolderRepository {
	return &FolderRepository{db: db}
}

func (r *FolderRepository) Save(folder *model.Folder) error {
	if err := r.db.Save(folder).Error; err != nil {
		return fmt.Errorf("save folder failed: %w", err)
	}
	return nil
}

func (r *FolderRepository) List() ([]model.Folder, error) {
	var folders []model.Folder
	if err := r.db.Order("id ASC").Find(&folders).Error; err != nil {
		return nil, fmt.Errorf("list folders failed: %w", err)
	}
	return folders, nil
}
