package core

import "time"

// DownloadStatus describes the externally visible state of a download.
type DownloadStatus int

// DownloadStatus states.
const (
	StatusDownloading DownloadStatus = iota
	StatusCompleted
	StatusWarning
)

func (s DownloadStatus) String() string {
	switch s {
	case StatusDownloading:
		return "downloading"
	case StatusCompleted:
		return "completed"
	case StatusWarning:
		return "warning"
	}
	return "unknown"
}

// DownloadItem is the uniform per-release view emitted to the collection
// manager on every poll.
type DownloadItem struct {
	DownloadID    string
	Title         string
	TotalSize     int64
	RemainingSize int64

	// RemainingTime is the estimated time to completion. Zero means unknown.
	RemainingTime time.Duration

	Status  DownloadStatus
	Message string

	// OutputPath is the local payload location, set once the payload is
	// importable.
	OutputPath string

	CanMoveFiles bool
	CanBeRemoved bool
}
