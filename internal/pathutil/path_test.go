package pathutil

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/sfx/internal/errdef"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty is root", in: "", want: ""},
		{name: "dot is root", in: ".", want: ""},
		{name: "simple", in: "a/b/c.txt", want: "a/b/c.txt"},
		{name: "trailing slash", in: "a/b/", want: "a/b"},
		{name: "double slash", in: "a//b", want: "a/b"},
		{name: "dot elements", in: "./a/./b", want: "a/b"},
		{name: "backslashes", in: `app\bin\tool.exe`, want: "app/bin/tool.exe"},
		{name: "dots inside names", in: "a..b/..c", want: "a..b/..c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Normalize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			again, err := Normalize(got)
			require.NoError(t, err)
			assert.Equal(t, got, again, "normalize must be idempotent")
		})
	}
}

func TestNormalizeRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		in     string
		reason string
	}{
		{name: "parent element", in: "../etc/passwd", reason: "parent directory element"},
		{name: "nested parent", in: "a/b/../../..", reason: "parent directory element"},
		{name: "backslash parent", in: `a\..\..\x`, reason: "parent directory element"},
		{name: "absolute", in: "/etc/passwd", reason: "absolute path"},
		{name: "windows absolute", in: `\Windows\System32`, reason: "absolute path"},
		{name: "drive", in: "C:/Users", reason: "drive-qualified path"},
		{name: "nul byte", in: "a\x00b", reason: "contains NUL byte"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Normalize(tt.in)
			require.ErrorIs(t, err, errdef.ErrUnsafePath)

			var pathErr *PathError
			require.True(t, errors.As(err, &pathErr))
			assert.Equal(t, tt.in, pathErr.Path)
			assert.Equal(t, tt.reason, pathErr.Reason)
		})
	}
}

func TestJoin(t *testing.T) {
	t.Parallel()

	got, err := Join("", "c.txt")
	require.NoError(t, err)
	assert.Equal(t, "c.txt", got)

	got, err = Join("a/b/", "c.txt")
	require.NoError(t, err)
	assert.Equal(t, "a/b/c.txt", got)

	got, err = Join("a/b", "c.txt")
	require.NoError(t, err)
	assert.Equal(t, "a/b/c.txt", got)

	_, err = Join("a", "../../x")
	require.ErrorIs(t, err, errdef.ErrUnsafePath)
}

func TestDirPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", DirPath(""))
	assert.Equal(t, "a/b/", DirPath("a/b"))
}

func TestValidateEntry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		path    string
		dir     bool
		wantErr bool
	}{
		{name: "file", path: "a/b/c.txt", dir: false},
		{name: "dir", path: "a/b/", dir: true},
		{name: "metadata", path: "metadata.toml", dir: false},
		{name: "empty", path: "", dir: false, wantErr: true},
		{name: "root dir", path: "/", dir: true, wantErr: true},
		{name: "dir without slash", path: "a/b", dir: true, wantErr: true},
		{name: "file with slash", path: "a/b/", dir: false, wantErr: true},
		{name: "unnormalized", path: "a//b", dir: false, wantErr: true},
		{name: "dot element", path: "./a", dir: false, wantErr: true},
		{name: "traversal", path: "a/../../b", dir: false, wantErr: true},
		{name: "traversal dir", path: "../", dir: true, wantErr: true},
		{name: "backslash", path: `a\b`, dir: false, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateEntry(tt.path, tt.dir)
			if tt.wantErr {
				require.ErrorIs(t, err, errdef.ErrUnsafePath)
				var pathErr *PathError
				require.True(t, errors.As(err, &pathErr))
				assert.Equal(t, tt.path, pathErr.Path)
				return
			}
			require.NoError(t, err)
		})
	}
}
