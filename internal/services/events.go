package services

import (
	"path"
	"strings"
)

// GCSEvent is the payload of a storage object finalized CloudEvent.
type GCSEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

// EventFilter decides which finalized objects start a run. Page images the
// pipeline publishes itself land in the same bucket and must be ignored.
type EventFilter struct {
	Bucket           string
	SourcePrefix     string
	PublishDirectory string
}

func (f EventFilter) ShouldProcess(e GCSEvent) (bool, string) {
	switch {
	case e.Name == "" || strings.HasSuffix(e.Name, "/"):
		return false, "not an object"
	case f.Bucket != "" && e.Bucket != f.Bucket:
		return false, "different bucket"
	case f.PublishDirectory != "" && strings.HasPrefix(e.Name, strings.TrimSuffix(f.PublishDirectory, "/")+"/"):
		return false, "published page image"
	case f.SourcePrefix != "" && !strings.HasPrefix(e.Name, f.SourcePrefix):
		return false, "outside source prefix"
	case !strings.EqualFold(path.Ext(e.Name), ".pdf"):
		return false, "not a PDF"
	}
	return true, ""
}

// Invocation renders the event as a batch invocation string.
func (e GCSEvent) Invocation() string {
	return "key=" + e.Name
}
