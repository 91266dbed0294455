package models

// AllowedExtensions is the set of lowercase file extensions accepted for upload.
var AllowedExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".gif":  {},
	".webp": {},
	".heic": {},
	".heif": {},
}

// DownloadProbeOrder is the fixed order in which originals are probed when a
// download request has no matching record.
var DownloadProbeOrder = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".heic", ".heif"}

// UploadedAtLayout is the timestamp format persisted on records. Second
// precision, no zone: lexicographic order equals chronological order and the
// first ten characters form the quota day key.
const UploadedAtLayout = "2006-01-02T15:04:05"

// Photo is one accepted upload. Records are append-only: they are never
// mutated or deleted once written to the index.
type Photo struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	DownloadURL   string `json:"download_url"`
	Name          string `json:"name"`
	OriginalExt   string `json:"original_ext"`
	MissionNumber string `json:"mission_number"`
	MissionDesc   string `json:"mission_desc"`
	HasMission    bool   `json:"has_mission"`
	UploadedAt    string `json:"uploaded_at"`
	ClientIP      string `json:"client_ip"`
}
