package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/sfx/internal/testutil"
)

func setupProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	testutil.WriteTree(t, filepath.Join(root, "dist"), map[string]string{
		"bin/miko.exe":     "binary",
		"share/readme.txt": "hello",
		"share/empty/":     "",
	})
	require.NoError(t, os.WriteFile(filepath.Join(root, "bootstrap.exe"), testutil.Bootstrap(512), 0o600))
	return root
}

func packArgs(root string, extra ...string) []string {
	args := []string{
		"pack",
		"--project-root", root,
		"--build-dir", "build",
		"--sources-dir", "dist",
		"--bootstrap-exe", "bootstrap.exe",
		"--app-name", "MikoIDE",
		"--app-version", "1.2.3",
		"--output", "out/setup.exe",
		"--log-level", "error",
	}
	return append(args, extra...)
}

func TestPackAndInspect(t *testing.T) {
	t.Parallel()

	root := setupProject(t)
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), packArgs(root, "--sort"), &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Equal(t, "Wrote setup: out/setup.exe\n", stdout.String())

	image := filepath.Join(root, "out", "setup.exe")
	info, err := os.Stat(image)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(512))

	stdout.Reset()
	code = run(context.Background(), []string{"inspect", "--list", "--verify", image}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	out := stdout.String()
	assert.Contains(t, out, "compression: LZMA")
	assert.Contains(t, out, "name:        MikoIDE")
	assert.Contains(t, out, `install_dir: %LOCALAPPDATA%\MikoIDE`)
	assert.Contains(t, out, "bin/miko.exe")
	assert.Contains(t, out, "share/empty/")
	assert.Contains(t, out, "metadata.toml")
	assert.Contains(t, out, "verified:")
	assert.Contains(t, out, "digest:      sha256:")
}

func TestPackCompressionFlag(t *testing.T) {
	t.Parallel()

	for _, alg := range []string{"zstd", "lz4", "gzip", "none"} {
		t.Run(alg, func(t *testing.T) {
			t.Parallel()
			root := setupProject(t)
			var stdout, stderr bytes.Buffer
			code := run(context.Background(), packArgs(root, "--compression", alg, "--level", "fastest"), &stdout, &stderr)
			require.Equal(t, 0, code, stderr.String())

			stdout.Reset()
			code = run(context.Background(), []string{"inspect", "--verify", filepath.Join(root, "out", "setup.exe")}, &stdout, &stderr)
			require.Equal(t, 0, code, stderr.String())
			assert.Contains(t, stdout.String(), "verified:")
		})
	}
}

func TestPackMissingBootstrap(t *testing.T) {
	t.Parallel()

	root := setupProject(t)
	require.NoError(t, os.Remove(filepath.Join(root, "bootstrap.exe")))

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), packArgs(root), &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "read bootstrap")

	_, err := os.Stat(filepath.Join(root, "out", "setup.exe"))
	assert.True(t, os.IsNotExist(err))
}

func TestPackRequiresFlags(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"pack", "--project-root", t.TempDir()}, &stdout, &stderr)
	assert.Equal(t, 2, code)
}

func TestInspectRejectsNonImage(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "plain.exe")
	require.NoError(t, os.WriteFile(path, testutil.Bootstrap(100), 0o600))

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"inspect", path}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "sfx: invalid image format")
}

func TestResolve(t *testing.T) {
	t.Parallel()

	root := filepath.Join(string(filepath.Separator), "proj")
	abs := filepath.Join(string(filepath.Separator), "abs", "x")
	assert.Equal(t, filepath.Join(root, "dist"), resolve(root, "dist"))
	assert.Equal(t, abs, resolve(root, abs))
	assert.Equal(t, "", resolve(root, ""))
}

func TestVerifyMultiple(t *testing.T) {
	t.Parallel()

	var images []string
	for _, alg := range []string{"lzma", "zstd", "none"} {
		root := setupProject(t)
		var stdout, stderr bytes.Buffer
		require.Equal(t, 0, run(context.Background(), packArgs(root, "--compression", alg), &stdout, &stderr), stderr.String())
		images = append(images, filepath.Join(root, "out", "setup.exe"))
	}

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), append([]string{"verify", "--jobs", "2"}, images...), &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	for _, img := range images {
		assert.Contains(t, stdout.String(), img+": ok")
	}

	broken := filepath.Join(t.TempDir(), "broken.exe")
	require.NoError(t, os.WriteFile(broken, []byte("not an image at all, just bytes"), 0o600))

	stdout.Reset()
	stderr.Reset()
	code = run(context.Background(), append([]string{"verify"}, append(images, broken)...), &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "broken.exe")
	assert.Empty(t, stdout.String())
}
