package casic

import (
	"fmt"
	"strings"
)

// MaxSentenceLength is the NMEA-0183 limit for a full sentence, '$' through
// the checksum digits.
const MaxSentenceLength = 82

// Checksum XOR-folds body.
func Checksum(body []byte) byte {
	var ck byte
	for _, b := range body {
		ck ^= b
	}
	return ck
}

// WriteChecksum appends the two hex digit checksum to a sentence that ends
// with '*'. The sum covers the bytes after the leading '$' up to the last
// '*'; without a '*' it covers everything after the first byte.
func WriteChecksum(sentence string) string {
	if len(sentence) == 0 {
		return "00"
	}
	body := sentence[1:]
	if star := strings.LastIndexByte(body, '*'); star != -1 {
		body = body[:star]
	}
	return fmt.Sprintf("%s%02X", sentence, Checksum([]byte(body)))
}

// VerifyChecksum reports whether claimed matches the checksum of sentence.
// Sentences without a leading '$' or without a '*' never verify.
func VerifyChecksum(sentence string, claimed byte) bool {
	if !strings.HasPrefix(sentence, "$") {
		return false
	}
	star := strings.IndexByte(sentence, '*')
	if star == -1 {
		return false
	}
	return Checksum([]byte(sentence[1:star])) == claimed
}
