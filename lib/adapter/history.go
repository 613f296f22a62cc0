package adapter

// GrabRecord is one historical grab recorded against this adapter instance
// by the surrounding manager. SeedrName and SeedrTransferID round-trip
// through GrabMetadata so an empty mapping store can be rebuilt after a
// restart.
type GrabRecord struct {
	DownloadID      string
	Title           string
	Imported        bool
	SeedrName       string
	SeedrTransferID int64
}

// History is the grab-history capability the adapter recovers from.
type History interface {
	Grabs() ([]GrabRecord, error)
}

// TorrentInfo resolves info-hashes from raw .torrent payloads.
type TorrentInfo interface {
	InfoHash(torrent []byte) (string, error)
}

// TorrentInfoFunc adapts a function to the TorrentInfo interface.
type TorrentInfoFunc func(torrent []byte) (string, error)

// InfoHash implements TorrentInfo.
func (f TorrentInfoFunc) InfoHash(torrent []byte) (string, error) {
	return f(torrent)
}
