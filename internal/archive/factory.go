package archive

import (
	"context"
	"fmt"
	"os"

	fsstore "liveview/internal/infra/archive/fs"
	memorystore "liveview/internal/infra/archive/memory"
	s3store "liveview/internal/infra/archive/s3"
)

// NewMemory returns an in-memory archive.Store suitable for tests.
func NewMemory() Store { return memorystore.New() }

// NewFilesystem constructs a filesystem-backed archive.Store rooted at the
// provided path.
func NewFilesystem(root string) (Store, error) {
	return fsstore.New(root)
}

// S3Config re-exports the infra S3 configuration type.
type S3Config = s3store.Config

// NewS3 constructs an S3-backed archive.Store from the provided configuration.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) {
	return s3store.New(ctx, cfg)
}

// NewS3MockForTests exposes the lightweight in-memory mock for cross-package tests.
func NewS3MockForTests() Store { return s3store.NewMockForTests() }

// Open selects an archive.Store implementation using environment variables.
//
//	LIVEVIEW_ARCHIVE_DRIVER: fs|s3|memory (default fs)
//	LIVEVIEW_ARCHIVE_FS_ROOT: directory root when driver=fs (default ./archivedata)
//	(S3 specific variables documented in the s3 driver)
func Open(ctx context.Context) (Store, error) {
	driver := os.Getenv("LIVEVIEW_ARCHIVE_DRIVER")
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		root := os.Getenv("LIVEVIEW_ARCHIVE_FS_ROOT")
		return NewFilesystem(root)
	case DriverS3:
		return s3store.OpenFromEnv(ctx)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown archive driver %s", driver)
	}
}
