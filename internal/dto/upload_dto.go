package dto

// ImageUploadRequest is the JSON form of an upload: a base64 payload or data URI.
type ImageUploadRequest struct {
	Base64 string `json:"base64" validate:"required"`
	Folder string `json:"folder" validate:"omitempty,max=128"`
}

// ImageUploadResponse describes the stored asset.
type ImageUploadResponse struct {
	URL     string `json:"url"`
	ImageID string `json:"imageId"`
	Bytes   int64  `json:"bytes"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}
