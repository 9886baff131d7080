package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spec-kit/complaint-service/internal/config"
)

// Open builds the attachment store selected by cfg.Driver.
func Open(cfg config.StorageConfig) (AttachmentStore, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "local":
		local, err := NewLocalStore(cfg.AttachmentDir)
		if err != nil {
			return nil, err
		}
		return local, nil
	case "cloudinary":
		if cfg.CloudinaryURL == "" {
			return nil, errors.New("CLOUDINARY_URL is required for the cloudinary driver")
		}
		remote, err := NewCloudinaryStore(cfg.CloudinaryURL, cfg.CloudinaryFolder)
		if err != nil {
			return nil, err
		}
		return remote, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
