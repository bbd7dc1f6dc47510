package table

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.tsv")
	header := []string{"a", "b", "c"}
	rows := [][]string{
		{"1", "two", "three"},
		{"", "with\ttab", "with\nnewline"},
		{"back\\slash", "cr\rhere", "plain"},
	}
	require.NoError(t, Write(path, header, rows))

	gotHeader, gotRows, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, header, gotHeader)
	assert.Equal(t, rows, gotRows)
}

func TestWriteCompressedSuffixes(t *testing.T) {
	header := []string{"x", "y"}
	rows := [][]string{{"1", "2"}, {"3", "4"}}
	for _, suffix := range []string{".tsv", ".tsv.zst", ".tsv.lz4"} {
		t.Run(suffix, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "out"+suffix)
			require.NoError(t, Write(path, header, rows))
			gotHeader, gotRows, err := Read(path)
			require.NoError(t, err)
			assert.Equal(t, header, gotHeader)
			assert.Equal(t, rows, gotRows)
		})
	}
}

func TestWriteRejectsRaggedRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.tsv")
	err := Write(path, []string{"a", "b"}, [][]string{{"only-one"}})
	require.Error(t, err)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "failed write must not leave a file under the final name")
}

func TestWriteLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.tsv")
	require.NoError(t, Write(path, []string{"a"}, [][]string{{"1"}}))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "out.tsv", entries[0].Name())
}

func TestReadRejectsRaggedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.tsv")
	require.NoError(t, os.WriteFile(path, []byte("a\tb\n1\n"), 0o644))
	_, _, err := Read(path)
	require.Error(t, err)
}

func TestReadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.tsv")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	_, _, err := Read(path)
	require.Error(t, err)
}

func TestReadHeaderOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hdr.tsv")
	require.NoError(t, Write(path, []string{"a", "b"}, nil))
	header, rows, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, header)
	assert.Empty(t, rows)
}

func TestEscapeUnescape(t *testing.T) {
	cases := []string{
		"",
		"plain",
		"tab\there",
		"line\nbreak",
		"cr\rhere",
		`back\slash`,
		"mix\t\n\r\\end",
		`trailing backslash\`,
	}
	for _, s := range cases {
		assert.Equal(t, s, Unescape(Escape(s)), "case %q", s)
	}
	assert.NotContains(t, Escape("a\tb"), "\t")
	assert.NotContains(t, Escape("a\nb"), "\n")
}
