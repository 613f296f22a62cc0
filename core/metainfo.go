package core

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"

	bencode "github.com/jackpal/bencode-go"
)

// InfoHashFromTorrent computes the uppercase hex info-hash of a raw .torrent
// payload.
//
// The info dict is decoded generically and re-encoded rather than mapped
// onto a struct: bencode dict keys are emitted in sorted order, so the
// round-trip preserves unknown keys and reproduces the canonical encoding
// the hash is defined over.
func InfoHashFromTorrent(torrent []byte) (string, error) {
	decoded, err := bencode.Decode(bytes.NewReader(torrent))
	if err != nil {
		return "", fmt.Errorf("decode torrent: %s", err)
	}
	metainfo, ok := decoded.(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("torrent root is not a dict")
	}
	info, ok := metainfo["info"]
	if !ok {
		return "", fmt.Errorf("torrent has no info dict")
	}
	b := new(bytes.Buffer)
	if err := bencode.Marshal(b, info); err != nil {
		return "", fmt.Errorf("encode info dict: %s", err)
	}
	sum := sha1.Sum(b.Bytes())
	return strings.ToUpper(hex.EncodeToString(sum[:])), nil
}
