package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/your-org/facewatch/internal/config"
)

var ErrInvalidImageName = errors.New("invalid image name")

// ImageStore keeps saved face crops addressed by flat file name.
type ImageStore interface {
	Save(ctx context.Context, name string, data []byte) error
	Load(ctx context.Context, name string) ([]byte, error)
	Delete(ctx context.Context, name string) error
	Ping(ctx context.Context) error
}

// OpenImages builds the image store selected by cfg.Backend.
func OpenImages(ctx context.Context, cfg config.StorageConfig) (ImageStore, error) {
	switch cfg.Backend {
	case "", "disk":
		return NewDiskStore(cfg.ImagesDir)
	case "minio":
		s, err := NewMinIOStore(cfg.MinIO)
		if err != nil {
			return nil, err
		}
		if err := s.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// ValidateImageName rejects anything that is not a plain file name.
func ValidateImageName(name string) error {
	if name == "" || name == "." || strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidImageName, name)
	}
	return nil
}

type DiskStore struct {
	dir string
}

func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create images dir: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

func (s *DiskStore) Save(_ context.Context, name string, data []byte) error {
	if err := ValidateImageName(name); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return fmt.Errorf("save image %s: %w", name, err)
	}
	return nil
}

func (s *DiskStore) Load(_ context.Context, name string) ([]byte, error) {
	if err := ValidateImageName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load image %s: %w", name, err)
	}
	return data, nil
}

func (s *DiskStore) Delete(_ context.Context, name string) error {
	if err := ValidateImageName(name); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete image %s: %w", name, err)
	}
	return nil
}

func (s *DiskStore) Ping(_ context.Context) error {
	_, err := os.Stat(s.dir)
	return err
}
