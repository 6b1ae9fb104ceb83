package upload

// State is the caller-visible phase of an upload.
type State string

const (
	StateIdle      State = "idle"
	StateUploading State = "uploading"
	StateRetrying  State = "retrying"
	StatePaused    State = "paused"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Status is a transient progress snapshot delivered to caller callbacks.
// Never persisted; reconstructed from the session when resuming.
type Status struct {
	State        State  `json:"state"`
	Progress     int    `json:"progress"`
	Message      string `json:"message,omitempty"`
	CurrentChunk int    `json:"current_chunk,omitempty"`
	TotalChunks  int    `json:"total_chunks,omitempty"`
	RetryCount   int    `json:"retry_count,omitempty"`
	Error        string `json:"error,omitempty"`
}

type (
	ProgressFunc func(progress int)
	StatusFunc   func(status Status)
)

// reporter fans status out to the optional callbacks and keeps reported
// progress non-decreasing within one upload attempt.
type reporter struct {
	onProgress ProgressFunc
	onStatus   StatusFunc
	last       int
}

func newReporter(onProgress ProgressFunc, onStatus StatusFunc) *reporter {
	return &reporter{onProgress: onProgress, onStatus: onStatus}
}

func (r *reporter) report(s Status) {
	if s.Progress < r.last {
		s.Progress = r.last
	}
	r.last = s.Progress

	if r.onStatus != nil {
		r.onStatus(s)
	}
	if r.onProgress != nil {
		r.onProgress(s.Progress)
	}
}
