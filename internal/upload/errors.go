package upload

import "errors"

var (
	// ErrUploadFailed is the terminal write-path error after all retry
	// budgets are spent. Write failures always surface; a silent partial
	// upload would corrupt later reads.
	ErrUploadFailed = errors.New("upload failed")

	// ErrConsecutiveFailures aborts a chunked upload early when three
	// chunks in a row fail terminally. That pattern signals a systemic
	// problem, and aborting bounds worst-case retry time.
	ErrConsecutiveFailures = errors.New("upload aborted after consecutive chunk failures")

	// ErrPartialManifest means fewer completed chunks than expected at
	// manifest build time. The session is left in place so a retry can
	// resume from the chunks that did complete.
	ErrPartialManifest = errors.New("refusing to build manifest from incomplete chunk set")

	// ErrCancelled reports a cooperative cancellation observed at an
	// upload checkpoint.
	ErrCancelled = errors.New("upload cancelled")
)
