package core

import (
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

// SyntheticIDPrefix keys mappings for transfers whose info-hash was never
// reported by the cloud.
const SyntheticIDPrefix = "seedr-"

// NormalizeInfoHash validates s as a 40-character hex info-hash and returns
// it uppercased.
func NormalizeInfoHash(s string) (string, error) {
	if len(s) != 40 {
		return "", fmt.Errorf("invalid hash: expected 40 characters, got %d", len(s))
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", fmt.Errorf("invalid hex: %s", err)
	}
	return strings.ToUpper(s), nil
}

// SyntheticID builds the mapping key for a hashless transfer.
func SyntheticID(transferID int64) string {
	return fmt.Sprintf("%s%d", SyntheticIDPrefix, transferID)
}

// InfoHashFromMagnet extracts the uppercase hex info-hash from a magnet URI's
// xt parameter. Accepts both hex and base32 btih encodings.
func InfoHashFromMagnet(magnet string) (string, error) {
	u, err := url.Parse(magnet)
	if err != nil {
		return "", fmt.Errorf("parse magnet: %s", err)
	}
	if u.Scheme != "magnet" {
		return "", fmt.Errorf("not a magnet uri: scheme %q", u.Scheme)
	}
	for _, xt := range u.Query()["xt"] {
		if !strings.HasPrefix(xt, "urn:btih:") {
			continue
		}
		raw := strings.TrimPrefix(xt, "urn:btih:")
		switch len(raw) {
		case 40:
			return NormalizeInfoHash(raw)
		case 32:
			b, err := base32.StdEncoding.DecodeString(strings.ToUpper(raw))
			if err != nil {
				return "", fmt.Errorf("invalid base32 hash: %s", err)
			}
			return strings.ToUpper(hex.EncodeToString(b)), nil
		default:
			return "", fmt.Errorf("invalid btih length %d", len(raw))
		}
	}
	return "", fmt.Errorf("magnet uri has no btih xt parameter")
}
