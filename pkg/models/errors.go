package models

import "errors"

// Error taxonomy for the publishing pipeline. Publisher-level errors are
// recorded on the video record and never escape the orchestrator; only
// ErrVideoNotFound propagates to HTTP callers.
var (
	ErrVideoNotFound      = errors.New("video not found")
	ErrCredentialsMissing = errors.New("account is not authorized for platform")
	ErrPlatformRejected   = errors.New("platform rejected the upload")
	ErrSizeExceeded       = errors.New("media exceeds platform size limit")
	ErrQuotaExceeded      = errors.New("account daily publish quota reached")
	ErrNoVideosToSchedule = errors.New("no videos to schedule")
)
