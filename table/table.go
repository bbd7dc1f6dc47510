// Package table reads and writes the tabular artifacts the engine produces:
// hit tables, similarity matrices, and run manifests.
//
// Artifacts are tab-separated with a header row and are always rewritten
// whole through a temp file and rename, so a crash mid-write never leaves a
// half-updated file under the final name. Compression is chosen by filename
// suffix (.zst, .lz4, or none).
package table

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Write writes header plus rows to path atomically.
func Write(path string, header []string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := writeAll(f, path, header, rows); err != nil {
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
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return syncDir(filepath.Dir(path))
}

func writeAll(f *os.File, path string, header []string, rows [][]string) error {
	w, closeCompressor, err := compressWriter(f, path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	if err := writeRow(bw, header); err != nil {
		return err
	}
	for _, row := range rows {
		if len(row) != len(header) {
			return fmt.Errorf("table: row has %d fields, header has %d", len(row), len(header))
		}
		if err := writeRow(bw, row); err != nil {
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return closeCompressor()
}

func writeRow(w *bufio.Writer, fields []string) error {
	for i, f := range fields {
		if i > 0 {
			if err := w.WriteByte('\t'); err != nil {
				return err
			}
		}
		if _, err := w.WriteString(Escape(f)); err != nil {
			return err
		}
	}
	return w.WriteByte('\n')
}

// Read reads a table written by Write, returning its header and rows.
func Read(path string) (header []string, rows [][]string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r, closeDecompressor, err := compressReader(f, path)
	if err != nil {
		return nil, nil, err
	}
	defer closeDecompressor()

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	first := true
	for sc.Scan() {
		fields := splitRow(sc.Text())
		if first {
			header = fields
			first = false
			continue
		}
		if len(fields) != len(header) {
			return nil, nil, fmt.Errorf("table: %s: row has %d fields, header has %d", path, len(fields), len(header))
		}
		rows = append(rows, fields)
	}
	if err := sc.Err(); err != nil {
		return nil, nil, err
	}
	if first {
		return nil, nil, fmt.Errorf("table: %s: missing header", path)
	}
	return header, rows, nil
}

func splitRow(line string) []string {
	parts := strings.Split(line, "\t")
	for i, p := range parts {
		parts[i] = Unescape(p)
	}
	return parts
}

// Escape makes a field safe for one TSV cell. Tabs, newlines, and
// backslashes are the only bytes with structural meaning.
func Escape(s string) string {
	if !strings.ContainsAny(s, "\t\n\r\\") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 4)
	for _, r := range s {
		switch r {
		case '\t':
			b.WriteString(`\t`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\\':
			b.WriteString(`\\`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Unescape reverses Escape.
func Unescape(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 't':
			b.WriteByte('\t')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case '\\':
			b.WriteByte('\\')
		default:
			b.WriteByte('\\')
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
