// Package sfx builds self-extracting installer images.
//
// An image is a bootstrap executable with a payload appended to it:
//
//	[bootstrap][magic "MIKOSETUP\0"][tag][compressed tar][metadata][trailer]
//
// The trailer is three little-endian uint64 values (compressed size,
// metadata size, magic offset) occupying the last 24 bytes, so a bootstrap
// can locate its payload by reading the end of its own executable.
//
// # Building
//
// Pack covers the common case of a sources directory and a bootstrap file:
//
//	img, err := sfx.Pack(ctx, sfx.PackConfig{
//	    SourcesDir:    "build/dist",
//	    BootstrapPath: "build/bootstrap.exe",
//	    OutputPath:    "out/setup.exe",
//	    Metadata: metadata.Record{
//	        Name:       "MikoIDE",
//	        Version:    "1.2.3",
//	        InstallDir: `%LOCALAPPDATA%\MikoIDE`,
//	        Created:    time.Now(),
//	    },
//	})
//
// Collect and Assemble are the lower-level steps. Collect turns a directory
// tree into entries; Assemble accepts any entry list, so callers can feed
// entries from other sources.
//
// # Reading
//
// Open validates the trailer and magic of an image and exposes its segments:
//
//	f, err := sfx.OpenFile("out/setup.exe")
//	if err != nil {
//	    return err
//	}
//	defer f.Close()
//	rec, err := f.Metadata()
//
// Any structural problem is reported as an error matching ErrFormat.
package sfx
