package models

import "time"

// Photo represents an uploaded photo owned by either a quick-share session or
// an event. Exactly one of QuickID/EventID is set.
type Photo struct {
	ID           string    `json:"id"`
	QuickID      *string   `json:"quick_id,omitempty"`
	EventID      *string   `json:"event_id,omitempty"`
	UploaderID   *string   `json:"uploader_id,omitempty"`
	UploaderName string    `json:"uploader_name"`
	Filename     string    `json:"filename"`
	URL          string    `json:"url"`
	ThumbURL     string    `json:"thumb_url,omitempty"`
	Caption      string    `json:"caption"`
	Tags         []string  `json:"tags"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// PhotoPage is a paginated photo listing.
type PhotoPage struct {
	Photos []Photo `json:"photos"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}

// GalleryUpdate is the message fanned out to connected viewers when photos
// land in a session or event gallery.
type GalleryUpdate struct {
	Type       string    `json:"type"`
	Photos     []Photo   `json:"photos"`
	UploadedBy string    `json:"uploadedBy"`
	Timestamp  time.Time `json:"timestamp"`
}

const UpdatePhotoUploaded = "PHOTO_UPLOADED"
