package storage

import (
	"fmt"
	"strings"

	"github.com/timmy/sportsync/internal/config"
)

// StorageType defines the archive backend.
type StorageType string

const (
	StorageTypeR2           StorageType = "r2"
	StorageTypeS3           StorageType = "s3"
	StorageTypeS3Compatible StorageType = "s3compatible"
	StorageTypeLocal        StorageType = "local"
)

// NewObjectStore creates an ObjectStore from the archive configuration.
// Parameters:
//   - cfg: archive settings; an empty type is detected from the endpoint.
//
// Returns:
//   - ObjectStore: initialized store.
//   - error: non-nil if the client cannot be created.
func NewObjectStore(cfg config.ArchiveConfig) (ObjectStore, error) {
	storeType := StorageType(strings.ToLower(cfg.Type))
	if storeType == "" {
		storeType = detectStorageType(cfg.Endpoint)
	}

	switch storeType {
	case StorageTypeLocal:
		return NewFileStore(cfg.Endpoint), nil
	case StorageTypeR2, StorageTypeS3, StorageTypeS3Compatible:
		return NewS3Store(&S3Config{
			Type:      storeType,
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			UseSSL:    cfg.UseSSL,
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			PublicURL: cfg.PublicURL,
		})
	default:
		return nil, fmt.Errorf("unknown archive type %q", cfg.Type)
	}
}

// detectStorageType attempts to detect the storage type from the endpoint
func detectStorageType(endpoint string) StorageType {
	endpoint = strings.ToLower(endpoint)

	switch {
	case endpoint == "" || strings.HasPrefix(endpoint, "/") || strings.HasPrefix(endpoint, "."):
		return StorageTypeLocal
	case strings.Contains(endpoint, "r2.cloudflarestorage.com"):
		return StorageTypeR2
	case strings.Contains(endpoint, "amazonaws.com"):
		return StorageTypeS3
	default:
		return StorageTypeS3Compatible
	}
}
