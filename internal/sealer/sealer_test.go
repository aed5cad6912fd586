package sealer

import (
	"bytes"
	"errors"
	"testing"
)

func testKey(fill byte) []byte {
	return bytes.Repeat([]byte{fill}, 32)
}

func TestNewRejectsBadKeyLengths(t *testing.T) {
	for _, n := range []int{0, 16, 31, 33, 64} {
		if _, err := New(bytes.Repeat([]byte{1}, n)); err == nil {
			t.Fatalf("expected %d-byte key to be rejected", n)
		}
	}
	if _, err := New(testKey(1)); err != nil {
		t.Fatalf("32-byte key rejected: %v", err)
	}
}

func TestSealOpenRoundtrip(t *testing.T) {
	s, err := New(testKey(0x42))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	plaintext := []byte(`{"failedAttempts":3,"version":1}`)
	box, err := s.Seal(plaintext)
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}
	if bytes.Contains(box, plaintext) {
		t.Fatal("box contains the plaintext")
	}

	opened, err := s.Open(box)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Fatalf("roundtrip mismatch: %q", opened)
	}
}

func TestSealIsNonDeterministic(t *testing.T) {
	s, _ := New(testKey(0x42))

	a, err := s.Seal([]byte("payload"))
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}
	b, err := s.Seal([]byte("payload"))
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}
	if bytes.Equal(a, b) {
		t.Fatal("two seals of the same payload must differ")
	}
}

func TestOpenRejectsTamperedBox(t *testing.T) {
	s, _ := New(testKey(0x42))

	box, err := s.Seal([]byte("payload"))
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}

	tampered := append([]byte(nil), box...)
	tampered[len(tampered)-1] ^= 0x01
	if _, err := s.Open(tampered); !errors.Is(err, ErrOpenFailed) {
		t.Fatalf("expected ErrOpenFailed for tampered box, got %v", err)
	}
}

func TestOpenRejectsTruncatedBox(t *testing.T) {
	s, _ := New(testKey(0x42))

	for _, box := range [][]byte{nil, {}, make([]byte, 5), make([]byte, 23)} {
		if _, err := s.Open(box); !errors.Is(err, ErrOpenFailed) {
			t.Fatalf("expected ErrOpenFailed for %d-byte box, got %v", len(box), err)
		}
	}
}

func TestOpenRejectsWrongKey(t *testing.T) {
	writer, _ := New(testKey(0x42))
	reader, _ := New(testKey(0x43))

	box, err := writer.Seal([]byte("payload"))
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}
	if _, err := reader.Open(box); !errors.Is(err, ErrOpenFailed) {
		t.Fatalf("expected ErrOpenFailed under the wrong key, got %v", err)
	}
}
