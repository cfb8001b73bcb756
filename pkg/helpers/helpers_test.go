package helpers

import (
	"bytes"
	"testing"
)

func TestHexToBytes(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []byte
		wantErr bool
	}{
		{name: "plain hex", input: "deadbeef", want: []byte{0xde, 0xad, 0xbe, 0xef}},
		{name: "0x prefix", input: "0xdeadbeef", want: []byte{0xde, 0xad, 0xbe, 0xef}},
		{name: "empty", input: "", want: []byte{}},
		{name: "invalid chars", input: "zzzz", wantErr: true},
		{name: "odd length", input: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := HexToBytes(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("HexToBytes(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && !bytes.Equal(got, tt.want) {
				t.Errorf("HexToBytes(%q) = %x, want %x", tt.input, got, tt.want)
			}
		})
	}
}

func TestHexToHash32(t *testing.T) {
	full := make([]byte, 32)
	for i := range full {
		full[i] = byte(i)
	}

	got, err := HexToHash32(BytesToHex(full))
	if err != nil {
		t.Fatalf("HexToHash32() error = %v", err)
	}
	if !bytes.Equal(got, full) {
		t.Errorf("HexToHash32() = %x, want %x", got, full)
	}

	if _, err := HexToHash32("deadbeef"); err == nil {
		t.Error("HexToHash32(short) should return error")
	}
	if _, err := HexToHash32("not-hex"); err == nil {
		t.Error("HexToHash32(invalid) should return error")
	}
}

func TestIsZeroBytes(t *testing.T) {
	if !IsZeroBytes(make([]byte, 32)) {
		t.Error("IsZeroBytes(zeros) = false, want true")
	}
	if !IsZeroBytes(nil) {
		t.Error("IsZeroBytes(nil) = false, want true")
	}
	if IsZeroBytes([]byte{0, 0, 1}) {
		t.Error("IsZeroBytes(nonzero) = true, want false")
	}
}

func TestGenerateSecureRandom(t *testing.T) {
	a, err := GenerateSecureRandom(32)
	if err != nil {
		t.Fatalf("GenerateSecureRandom() error = %v", err)
	}
	if len(a) != 32 {
		t.Fatalf("GenerateSecureRandom() returned %d bytes, want 32", len(a))
	}

	b, err := GenerateSecureRandom(32)
	if err != nil {
		t.Fatalf("GenerateSecureRandom() error = %v", err)
	}
	if bytes.Equal(a, b) {
		t.Error("two random values should not be equal")
	}
}

func TestConstantTimeCompare(t *testing.T) {
	a := []byte("s3cr3t-preimage-s3cr3t-preimage!")
	b := []byte("s3cr3t-preimage-s3cr3t-preimage!")
	c := []byte("wrong-preimage-wrong-preimage!!!")

	if !ConstantTimeCompare(a, b) {
		t.Error("ConstantTimeCompare(equal) = false, want true")
	}
	if ConstantTimeCompare(a, c) {
		t.Error("ConstantTimeCompare(different) = true, want false")
	}
	if ConstantTimeCompare(a, a[:16]) {
		t.Error("ConstantTimeCompare(different lengths) = true, want false")
	}
}
