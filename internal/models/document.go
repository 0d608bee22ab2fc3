package models

import "time"

// PageStatusVectorized marks a page whose vector was stored successfully.
const PageStatusVectorized = 1

// ContentRef identifies the Content row a source file belongs to.
type ContentRef struct {
	ContentID int64
	FileName  string
}

// PageVectorRecord is one row of ContentPageVector.
// PageImage holds the republish key of the rasterized page.
type PageVectorRecord struct {
	ContentID  int64
	PageNumber int
	Status     int
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Vector     []float32
	PageImage  string
}

// Embedding is the vector returned for a single image.
type Embedding struct {
	Vector    []float32
	Model     string
	Dimension int
}

// PageMatch is a stored page close enough to a query vector.
type PageMatch struct {
	ContentID  int64   `json:"contentId"`
	PageNumber int     `json:"pageNumber"`
	PageImage  string  `json:"pageImage"`
	Distance   float64 `json:"distance"`
}

// ContentGroup is the chapter/topic pair a Content belongs to.
type ContentGroup struct {
	ChapterID int64
	TopicID   int64
}

// ContentDetails is the metadata returned to scan clients, one per sibling
// document in the matched chapter/topic.
type ContentDetails struct {
	ContentID           int64      `json:"ContentID"`
	Title               *string    `json:"Title"`
	ContentName         *string    `json:"ContentName"`
	ContentDescription  *string    `json:"ContentDescription"`
	FilePath            *string    `json:"FilePath"`
	FileName            *string    `json:"FileName"`
	DisplayFileName     *string    `json:"DisplayFileName"`
	FileTypeID          *int64     `json:"FileTypeID"`
	FileSize            *int64     `json:"FileSize"`
	Duration            *string    `json:"Duration"`
	VideoResolution     *string    `json:"VideoResolution"`
	Publisher           *string    `json:"Publisher"`
	Author              *string    `json:"Author"`
	Thumbnail           *string    `json:"Thumbnail"`
	StatusID            *int64     `json:"StatusID"`
	UpdatedBy           *int64     `json:"UpdatedBy"`
	UpdatedOn           *time.Time `json:"UpdatedOn"`
	ThumbnailPath       *string    `json:"ThumbnailPath"`
	SpriteSheetPath     *string    `json:"SpriteSheetPath"`
	H5PID               *string    `json:"H5PID"`
	ThumbnailType       *string    `json:"ThumbnailType"`
	IsEncrypted         *bool      `json:"IsEncrypted"`
	IsEncryptionRequire *bool      `json:"IsEncryptionRequire"`
	TempPath            *string    `json:"TempPath"`
	SignedURL           *string    `json:"signedUrl"`
}

// Run is the ledger entry kept in Firestore for one pipeline invocation.
type Run struct {
	StorageKey   string    `firestore:"storageKey,omitempty"`
	ContentID    int64     `firestore:"contentId,omitempty"`
	Status       string    `firestore:"status,omitempty"`
	ErrorDetails string    `firestore:"errorDetails,omitempty"`
	PageCount    int       `firestore:"pageCount,omitempty"`
	PagesWritten int       `firestore:"pagesWritten,omitempty"`
	CreatedAt    time.Time `firestore:"createdAt,omitempty"`
	UpdatedAt    time.Time `firestore:"updatedAt,omitempty"`
}

// Run ledger states.
const (
	RunStatusRunning   = "RUNNING"
	RunStatusFailed    = "FAILED"
	RunStatusSucceeded = "SUCCEEDED"
)
