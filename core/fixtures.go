package core

import (
	"encoding/hex"
	"math/rand"
	"strings"
)

// InfoHashFixture returns a random info-hash for testing purposes.
func InfoHashFixture() string {
	b := make([]byte, 20)
	rand.Read(b)
	return strings.ToUpper(hex.EncodeToString(b))
}
