package tarstream

import (
	"archive/tar"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/sfx/internal/errdef"
)

var testTime = time.Unix(1700000000, 0)

func encode(t *testing.T, entries ...Entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	for _, e := range entries {
		require.NoError(t, enc.Add(e))
	}
	require.NoError(t, enc.Close())
	return buf.Bytes()
}

type scanned struct {
	Header
	Content string
}

func scanAll(t *testing.T, data []byte) []scanned {
	t.Helper()
	var out []scanned
	err := Scan(bytes.NewReader(data), func(h Header, r io.Reader) error {
		content, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		out = append(out, scanned{Header: h, Content: string(content)})
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestEncodeHeaders(t *testing.T) {
	t.Parallel()

	data := encode(t,
		Dir("a/", testTime),
		Dir("a/b/", testTime),
		Bytes("a/b/c.txt", []byte("hi"), testTime.Add(500*time.Millisecond)),
	)

	tr := tar.NewReader(bytes.NewReader(data))

	hdr, err := tr.Next()
	require.NoError(t, err)
	assert.Equal(t, "a/", hdr.Name)
	assert.Equal(t, byte(tar.TypeDir), hdr.Typeflag)
	assert.Equal(t, int64(0o755), hdr.Mode)
	assert.Equal(t, int64(0), hdr.Size)

	hdr, err = tr.Next()
	require.NoError(t, err)
	assert.Equal(t, "a/b/", hdr.Name)

	hdr, err = tr.Next()
	require.NoError(t, err)
	assert.Equal(t, "a/b/c.txt", hdr.Name)
	assert.Equal(t, byte(tar.TypeReg), hdr.Typeflag)
	assert.Equal(t, int64(0o644), hdr.Mode)
	assert.Equal(t, int64(2), hdr.Size)
	assert.Equal(t, testTime.Unix(), hdr.ModTime.Unix())
	assert.Equal(t, 0, hdr.ModTime.Nanosecond())

	content, err := io.ReadAll(tr)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(content))

	_, err = tr.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestEncoderCounters(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	require.NoError(t, enc.Add(Dir("d/", testTime)))
	require.NoError(t, enc.Add(Bytes("d/x", []byte("12345"), testTime)))
	require.NoError(t, enc.Add(Bytes("d/y", nil, testTime)))
	require.NoError(t, enc.Close())

	assert.Equal(t, 2, enc.Files())
	assert.Equal(t, uint64(5), enc.Bytes())
}

func TestScanRoundTrip(t *testing.T) {
	t.Parallel()

	data := encode(t,
		Dir("app/", testTime),
		Bytes("app/readme.md", []byte("# hello"), testTime),
		Bytes("orphan/file.bin", []byte{0, 1, 2}, testTime),
		Bytes("empty", nil, testTime),
	)

	got := scanAll(t, data)
	require.Len(t, got, 4)
	assert.Equal(t, "app/", got[0].Path)
	assert.Equal(t, KindDir, got[0].Kind)
	assert.Equal(t, DirMode, got[0].Mode)
	assert.Equal(t, "app/readme.md", got[1].Path)
	assert.Equal(t, "# hello", got[1].Content)
	assert.Equal(t, FileMode, got[1].Mode)
	assert.Equal(t, "orphan/file.bin", got[2].Path, "files without a parent directory entry are accepted")
	assert.Equal(t, int64(3), got[2].Size)
	assert.Equal(t, "empty", got[3].Path)
	assert.Equal(t, "", got[3].Content)
}

func TestAddRejects(t *testing.T) {
	t.Parallel()

	ok := func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader("")), nil }
	tests := []struct {
		name    string
		entry   Entry
		wantErr error
	}{
		{name: "traversal", entry: File("../evil", 0, testTime, ok), wantErr: errdef.ErrUnsafePath},
		{name: "absolute", entry: File("/etc/passwd", 0, testTime, ok), wantErr: errdef.ErrUnsafePath},
		{name: "dir without slash", entry: Dir("a", testTime), wantErr: errdef.ErrUnsafePath},
		{name: "file with slash", entry: File("a/", 0, testTime, ok), wantErr: errdef.ErrUnsafePath},
		{name: "negative size", entry: File("a", -1, testTime, ok), wantErr: errdef.ErrSizeOverflow},
		{name: "missing opener", entry: Entry{Path: "a", Kind: KindFile}},
		{name: "dir with size", entry: Entry{Path: "a/", Kind: KindDir, Size: 3}},
		{name: "unknown kind", entry: Entry{Path: "a", Kind: Kind(9)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			enc := NewEncoder(io.Discard)
			err := enc.Add(tt.entry)
			require.Error(t, err)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestAddRejectsDuplicate(t *testing.T) {
	t.Parallel()

	enc := NewEncoder(io.Discard)
	require.NoError(t, enc.Add(Bytes("metadata.toml", []byte("a"), testTime)))
	err := enc.Add(Bytes("metadata.toml", []byte("b"), testTime))
	require.ErrorIs(t, err, errdef.ErrDuplicatePath)
}

func TestAddDetectsChangedContent(t *testing.T) {
	t.Parallel()

	shrunk := File("f", 10, testTime, func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader("short")), nil
	})
	err := NewEncoder(io.Discard).Add(shrunk)
	require.ErrorIs(t, err, errdef.ErrIO)
	assert.Contains(t, err.Error(), "file changed")

	grown := File("f", 2, testTime, func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader("longer")), nil
	})
	err = NewEncoder(io.Discard).Add(grown)
	require.ErrorIs(t, err, errdef.ErrIO)
	assert.Contains(t, err.Error(), "file changed")
}

func TestAddOpenFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("permission denied")
	e := File("f", 1, testTime, func() (io.ReadCloser, error) { return nil, boom })
	err := NewEncoder(io.Discard).Add(e)
	require.ErrorIs(t, err, errdef.ErrIO)
	require.ErrorIs(t, err, boom)
}

func TestScanRejectsUnsafePaths(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "../escape.txt", Typeflag: tar.TypeReg, Size: 1, Mode: 0o644}))
	_, err := tw.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, tw.Close())

	called := false
	err = Scan(bytes.NewReader(buf.Bytes()), func(Header, io.Reader) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, errdef.ErrUnsafePath)
	assert.False(t, called)
}

func TestScanRejectsSymlinks(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "link", Typeflag: tar.TypeSymlink, Linkname: "/etc/passwd"}))
	require.NoError(t, tw.Close())

	err := Scan(bytes.NewReader(buf.Bytes()), func(Header, io.Reader) error { return nil })
	require.ErrorIs(t, err, errdef.ErrFormat)
}

func TestScanTruncated(t *testing.T) {
	t.Parallel()

	data := encode(t, Bytes("big", bytes.Repeat([]byte("x"), 2048), testTime))
	err := Scan(bytes.NewReader(data[:700]), func(_ Header, r io.Reader) error {
		_, err := io.ReadAll(r)
		return err
	})
	require.Error(t, err)
}

func TestScanCallbackError(t *testing.T) {
	t.Parallel()

	data := encode(t, Bytes("a", []byte("1"), testTime), Bytes("b", []byte("2"), testTime))
	stop := errors.New("stop")
	count := 0
	err := Scan(bytes.NewReader(data), func(Header, io.Reader) error {
		count++
		return stop
	})
	require.ErrorIs(t, err, stop)
	assert.Equal(t, 1, count)
}
