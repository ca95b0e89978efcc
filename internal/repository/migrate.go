package repository

import (
	"fmt"

	"gorm.io/gorm"

	"lumina-research/internal/model"
)

func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.Folder{}, &model.Document{}); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}
	return nil
}
