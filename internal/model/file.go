package model

import "time"

// FileRecord is the metadata of an uploaded file. The bytes live in the blob
// store under FileKey; URL is where the blob store says they can be fetched.
type FileRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	ProjectID *string   `json:"projectId"`
	Filename  string    `json:"filename"`
	MimeType  string    `json:"mimeType"`
	FileSize  int64     `json:"fileSize"`
	URL       string    `json:"url"`
	FileKey   string    `json:"fileKey"`
	CreatedAt time.Time `json:"createdAt"`
}
