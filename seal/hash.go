package seal

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
)

// Content hashing for completeness markers.
//
// SHA-256 rather than a CRC: markers certify trustworthiness of hours of
// expensive provider calls, so accidental-corruption detection alone is not
// enough and the cost of hashing one artifact per unit is negligible.

// HashingWriter wraps an io.Writer and computes a running SHA-256.
type HashingWriter struct {
	w io.Writer
	h hash.Hash
}

// NewHashingWriter creates a new hashing writer.
func NewHashingWriter(w io.Writer) *HashingWriter {
	return &HashingWriter{w: w, h: sha256.New()}
}

// Write implements io.Writer.
func (hw *HashingWriter) Write(p []byte) (int, error) {
	if _, err := hw.h.Write(p); err != nil {
		return 0, err
	}
	return hw.w.Write(p)
}

// Sum returns the current hash as lowercase hex.
func (hw *HashingWriter) Sum() string {
	return hex.EncodeToString(hw.h.Sum(nil))
}

// HashingReader wraps an io.Reader and computes a running SHA-256.
type HashingReader struct {
	r io.Reader
	h hash.Hash
}

// NewHashingReader creates a new hashing reader.
func NewHashingReader(r io.Reader) *HashingReader {
	return &HashingReader{r: r, h: sha256.New()}
}

// Read implements io.Reader.
func (hr *HashingReader) Read(p []byte) (int, error) {
	n, err := hr.r.Read(p)
	if n > 0 {
		if _, hashErr := hr.h.Write(p[:n]); hashErr != nil {
			return n, hashErr
		}
	}
	return n, err
}

// Sum returns the current hash as lowercase hex.
func (hr *HashingReader) Sum() string {
	return hex.EncodeToString(hr.h.Sum(nil))
}

// IntegrityError is raised when a completeness marker exists but its target
// artifact is missing or no longer hashes to the recorded value.
type IntegrityError struct {
	Target   string
	Recorded string
	Actual   string
	Missing  bool
}

func (e *IntegrityError) Error() string {
	if e.Missing {
		return fmt.Sprintf("integrity error: %s has a completeness marker but the file is missing", e.Target)
	}
	return fmt.Sprintf("integrity error: %s hashes to %s but its marker records %s", e.Target, e.Actual, e.Recorded)
}

// IsIntegrity returns true if err is an integrity error.
func IsIntegrity(err error) bool {
	var ie *IntegrityError
	return errors.As(err, &ie)
}
