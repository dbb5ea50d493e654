package indexer

// ProcessingState is the lifecycle state the analysis service reports for a
// submitted video.
type ProcessingState string

// Processing states delivered through the callback endpoint.
const (
	StateUploaded   ProcessingState = "Uploaded"
	StateProcessing ProcessingState = "Processing"
	StateProcessed  ProcessingState = "Processed"
	StateFailed     ProcessingState = "Failed"
)

// Terminal reports whether the state ends the analysis job.
func (s ProcessingState) Terminal() bool {
	return s == StateProcessed || s == StateFailed
}

// Callback is the state-change notification posted by the analysis service.
type Callback struct {
	VideoID string
	State   ProcessingState
}

// Video is the minimal payload shape shared by upload and index responses.
type Video struct {
	ID    string `json:"id"`
	State string `json:"state"`
	Name  string `json:"name"`
}
