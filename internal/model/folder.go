package model

type Folder struct {
	ID        string `gorm:"primaryKey;size:128" json:"id"`
	Name      string `gorm:"size:128;not null" json:"name"`
	Synthesis string `gorm:"type:text" json:"synthesis,omitempty"`
}

// DefaultFolderID is the reserved folder documents fall back to.
const DefaultFolderID = "default"
