package models

import (
	"time"

	"github.com/google/uuid"
)

// Video is an uploaded video's metadata row. A row exists only if the object
// it references was durably stored first; rows are never updated in place.
type Video struct {
	ID             uuid.UUID `json:"id"`
	Filename       string    `json:"filename"`
	Description    string    `json:"description,omitempty"`
	FileSize       int64     `json:"fileSize"`
	StorageKey     string    `json:"-"`
	StorageLocator string    `json:"storageLocator"`
	UploadTime     time.Time `json:"uploadTime"`
}
