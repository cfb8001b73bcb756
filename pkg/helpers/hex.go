// Package helpers provides common utility functions used across the codebase.
package helpers

import (
	"encoding/hex"
	"strings"
)

// HexToBytes converts a hex string (with or without 0x prefix) to bytes.
func HexToBytes(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	return hex.DecodeString(s)
}

// BytesToHex converts bytes to a hex string without prefix.
func BytesToHex(b []byte) string {
	return hex.EncodeToString(b)
}

// HexToHash32 decodes a hex string into a 32-byte value. It returns an
// error when the input does not decode to exactly 32 bytes.
func HexToHash32(s string) ([]byte, error) {
	b, err := HexToBytes(s)
	if err != nil {
		return nil, err
	}
	if len(b) != 32 {
		return nil, hex.ErrLength
	}
	return b, nil
}
