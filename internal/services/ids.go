package services

import (
	"crypto/rand"
	"encoding/hex"
)

// 32 symbols so a random byte maps uniformly with a 5-bit mask. No l or o.
const sessionAlphabet = "abcdefghijkmnpqrstuvwxyz23456789"

const sessionIDLength = 6

func newSessionID() (string, error) {
	buf := make([]byte, sessionIDLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = sessionAlphabet[b&31]
	}
	return string(buf), nil
}

func newResponseID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
