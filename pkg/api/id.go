package api

import (
	"crypto/rand"
	"strings"
)

// StreamIDPrefix starts every stream ID.
const StreamIDPrefix = "grt_"

const (
	streamIDBody = 24
	alphabet     = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// Bytes at or above this are rejected so every symbol is equally likely.
	alphabetLimit = 256 - 256%len(alphabet)
)

// NewStreamID returns StreamIDPrefix followed by 24 random alphanumerics.
func NewStreamID() string {
	out := make([]byte, 0, len(StreamIDPrefix)+streamIDBody)
	out = append(out, StreamIDPrefix...)

	var buf [2 * streamIDBody]byte
	for len(out) < cap(out) {
		if _, err := rand.Read(buf[:]); err != nil {
			panic("crypto/rand: " + err.Error())
		}
		for _, b := range buf {
			if int(b) >= alphabetLimit {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == cap(out) {
				break
			}
		}
	}
	return string(out)
}

// ValidateStreamID reports whether id has the shape NewStreamID produces.
func ValidateStreamID(id string) bool {
	body, ok := strings.CutPrefix(id, StreamIDPrefix)
	if !ok || len(body) != streamIDBody {
		return false
	}
	for i := 0; i < len(body); i++ {
		if strings.IndexByte(alphabet, body[i]) < 0 {
			return false
		}
	}
	return true
}
