package database

import "time"

const (
	ProjectStatusPending    = "PENDING"
	ProjectStatusProcessing = "PROCESSING"

	DesignFileStatusUploaded = "UPLOADED"
)

type Project struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Slug        string    `json:"slug"`
	Status      string    `json:"status"`
	Thumbnail   string    `json:"thumbnail"`
	FileSize    int64     `json:"fileSize"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// DesignFile is one stored upload. StoragePath and ThumbnailPath are object keys and never leave the service.
type DesignFile struct {
	ID            string    `json:"id"`
	ProjectID     string    `json:"projectId"`
	Filename      string    `json:"filename"`
	OriginalName  string    `json:"originalName"`
	FileType      string    `json:"fileType"`
	FileURL       string    `json:"fileUrl"`
	ThumbnailURL  string    `json:"thumbnailUrl"`
	StoragePath   string    `json:"-"`
	ThumbnailPath string    `json:"-"`
	FileSize      int64     `json:"fileSize"`
	Width         *int      `json:"width"`
	Height        *int      `json:"height"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
}

type Template struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Thumbnail   string    `json:"thumbnail"`
	IsPremium   bool      `json:"isPremium"`
	IsPublic    bool      `json:"isPublic"`
	SortOrder   int       `json:"sortOrder"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ProjectUpdate is applied to the parent project together with a new DesignFile.
// An empty Thumbnail leaves the current thumbnail in place.
type ProjectUpdate struct {
	Status    string
	Thumbnail string
	FileSize  int64
	UpdatedAt time.Time
}
