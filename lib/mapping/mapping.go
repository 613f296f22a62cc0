// Package mapping holds the adapter's per-release memory: the records that
// tie BitTorrent info-hashes to cloud identifiers and local copy progress.
package mapping

import "time"

// DownloadMapping is the central per-release record. One exists per grabbed
// release, keyed by uppercase info-hash or a synthetic seedr-<id> key.
//
// Cloud identifiers are discovered in order as the transfer progresses: a
// transfer becomes a folder (multi-file) or a file (single-file), so all
// three ids may be filled over a mapping's lifetime. Zero means unset.
type DownloadMapping struct {
	InfoHash   string
	TransferID int64
	FolderID   int64
	FileID     int64
	Name       string

	// Tri-state of the cloud-to-local copy. At most one of InProgress and
	// Failed holds at any moment; Complete is sticky.
	LocalDownloadComplete   bool
	LocalDownloadInProgress bool
	LocalDownloadFailed     bool

	DownloadAttempts int
	NextRetryAfter   time.Time

	// Polls spent waiting for the cloud to finish assembling a folder.
	FolderReadyAttempts int

	// Sliding window for ETA estimation of cloud ingest and local copy.
	LastProgress           float64
	LastProgressTime       time.Time
	LocalDownloadStartTime time.Time
	LocalTotalBytes        int64
}
