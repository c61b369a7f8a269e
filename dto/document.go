package dto

import "time"

type DocumentInfo struct {
	Key          string    `json:"key"`
	FileName     string    `json:"file_name"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type"`
	LastModified time.Time `json:"last_modified"`
}

type DocumentListResponse struct {
	Documents []DocumentInfo `json:"documents"`
}

type DocumentUploadResponse struct {
	Key  string `json:"key"`
	Size int64  `json:"size"`
	URL  string `json:"url,omitempty"`
}
