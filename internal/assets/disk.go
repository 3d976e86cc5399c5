package assets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// DiskStore writes assets as uuid-named files under a single directory and
// returns references under /static/, matching how the files are served.
type DiskStore struct {
	dir string
}

func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create asset dir: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

func (s *DiskStore) Save(_ context.Context, data []byte, ext string) (string, error) {
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	name := fmt.Sprintf("logo_%s%s", strings.ReplaceAll(uuid.New().String(), "-", ""), ext)
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write asset: %w", err)
	}
	return "/static/" + name, nil
}

// Dir exposes the backing directory so the HTTP layer can serve it.
func (s *DiskStore) Dir() string {
	return s.dir
}
