// Package seal manages completeness markers: content hashes certifying that
// an output artifact is finished and trustworthy.
//
// A marker lives in a ".hashes" directory beside the artifact and records the
// SHA-256 of the artifact's bytes. The marker directory is the single source
// of truth for "is this output complete": a marker is written only as the
// terminal step of a successful seal, and no component reads an artifact
// without checking its marker first.
package seal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// HashDirName is the sibling directory holding markers for a data directory.
const HashDirName = ".hashes"

// MarkerPath returns the marker location for target.
func MarkerPath(target string) string {
	dir, name := filepath.Split(target)
	return filepath.Join(dir, HashDirName, name+".sha256")
}

// Write computes the content hash of target and atomically writes its marker.
// This must be the last step of sealing an artifact: once the marker exists,
// the artifact is advertised as complete.
func Write(target string) error {
	sum, err := HashFile(target)
	if err != nil {
		return fmt.Errorf("seal: hash %s: %w", target, err)
	}
	marker := MarkerPath(target)
	if err := os.MkdirAll(filepath.Dir(marker), 0o755); err != nil {
		return err
	}
	// Format matches coreutils sha256sum so markers are checkable by hand.
	line := sum + " *" + filepath.Base(target) + "\n"

	tmp := marker + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write([]byte(line)); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, marker); err != nil {
		os.Remove(tmp)
		return err
	}
	return syncDir(filepath.Dir(marker))
}

// Verify reports whether target carries a valid completeness marker.
//
// No marker means "not complete" (false, nil). A marker whose artifact is
// missing or whose content no longer hashes to the recorded value is a fatal
// *IntegrityError: it is never silently repaired, since "fixing" it could
// hide data loss.
func Verify(target string) (bool, error) {
	recorded, err := readMarker(target)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	actual, err := HashFile(target)
	if errors.Is(err, os.ErrNotExist) {
		return false, &IntegrityError{Target: target, Recorded: recorded, Missing: true}
	}
	if err != nil {
		return false, err
	}
	if actual != recorded {
		return false, &IntegrityError{Target: target, Recorded: recorded, Actual: actual}
	}
	return true, nil
}

// Remove deletes the marker for target, declaring the artifact in-progress
// again. Missing markers are fine.
func Remove(target string) error {
	err := os.Remove(MarkerPath(target))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func readMarker(target string) (string, error) {
	data, err := os.ReadFile(MarkerPath(target))
	if err != nil {
		return "", err
	}
	line := strings.TrimSpace(string(data))
	// "<hex> *<filename>"; tolerate a bare hash too.
	if i := strings.IndexAny(line, " \t"); i > 0 {
		line = line[:i]
	}
	if len(line) != 64 {
		return "", fmt.Errorf("seal: malformed marker for %s", target)
	}
	return line, nil
}

func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}

// HashFile returns the hex SHA-256 of the file's content.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	hr := NewHashingReader(f)
	if _, err := io.Copy(io.Discard, hr); err != nil {
		return "", err
	}
	return hr.Sum(), nil
}
