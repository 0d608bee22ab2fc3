package models

// These structs define the JSON results of the batch entry point and the
// request/response bodies of the scan API.

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// RunResult is what a batch invocation returns for one storage key.
type RunResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// UploadRequest is the body of POST /upload.
type UploadRequest struct {
	FileName    string `json:"fileName"`
	ImageBase64 string `json:"imageBase64"`
}

// UploadResponse is the output of POST /upload.
type UploadResponse struct {
	Status         string           `json:"status"`
	Message        string           `json:"message,omitempty"`
	ContentDetails []ContentDetails `json:"contentDetails,omitempty"`
}

// ErrorResponse is written for rejected or failed uploads.
type ErrorResponse struct {
	Error string `json:"error"`
}

// WorkflowPayload is the argument passed to the completion workflow.
type WorkflowPayload struct {
	ContentID  int64  `json:"contentId"`
	StorageKey string `json:"storageKey"`
	PageCount  int    `json:"pageCount"`
	RunID      string `json:"runId"`
}
