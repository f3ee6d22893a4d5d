package scope

import (
	"context"
	"strings"

	"github.com/samber/lo"

	"github.com/neilo40/tek_remote/instrument"
)

// FileSystem is the mass storage of MSO4000B and MDO3000 models.
type FileSystem struct {
	in *instrument.Instrument
}

// Listing returns the names in the current working directory.
func (fs *FileSystem) Listing(ctx context.Context) ([]string, error) {
	raw, err := fs.in.Query(ctx, "FILESYSTEM?")
	if err != nil {
		return nil, err
	}
	// the directory listing is followed by the free space
	dir, _, _ := strings.Cut(raw, ";")
	names := lo.Map(strings.Split(dir, ","), func(s string, _ int) string {
		return strings.Trim(strings.TrimSpace(s), `"`)
	})
	return lo.Compact(names), nil
}

// CWD returns the current working directory, e.g. E:/.
func (fs *FileSystem) CWD(ctx context.Context) (string, error) {
	return fs.in.QueryString(ctx, "FILESYSTEM:CWD?")
}

func (fs *FileSystem) SetCWD(ctx context.Context, dir string) error {
	return fs.in.Setf(ctx, "FILESYSTEM:CWD '%s'", dir)
}

// Mkdir creates a directory relative to the current working directory.
func (fs *FileSystem) Mkdir(ctx context.Context, dir string) error {
	return fs.in.Setf(ctx, "FILESYSTEM:MKDIR '%s'", dir)
}

// Mount mounts the network share server:path as drive.
func (fs *FileSystem) Mount(ctx context.Context, drive, server, path, user, password string) error {
	return fs.in.Setf(ctx, "FILESYSTEM:MOUNT:DRIVE '%s;%s;%s;%s;%s'", drive, server, path, user, password)
}

// Unmount unmounts a network drive.
func (fs *FileSystem) Unmount(ctx context.Context, drive string) error {
	return fs.in.Setf(ctx, "FILESYSTEM:UNMOUNT:DRIVE '%s'", drive)
}
