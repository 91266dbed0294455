package dto

// UploadPhotoRequest carries the optional multipart form fields accompanying
// an upload. The file part itself is read separately by the handler.
type UploadPhotoRequest struct {
	MissionNumber string `form:"mission_number" binding:"omitempty,max=100"`
	MissionDesc   string `form:"mission_desc" binding:"omitempty,max=2000"`
}
