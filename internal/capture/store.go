// Package capture persists snapshot artifacts handed in with an observation.
// Recognition itself happens outside this service; only the resulting JPEG
// bytes land here, and the ledger records the returned paths as opaque refs.
package capture

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

type Store struct {
	runDir string
}

func NewStore(runDir string) (*Store, error) {
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("create run dir: %w", err)
	}
	return &Store{runDir: runDir}, nil
}

// SavePair writes the annotated frame and the plate crop, either of which may
// be empty, and returns the stored paths ("" for whatever was absent).
func (s *Store) SavePair(snapshotB64, cropB64 string) (imagePath, cropPath string, err error) {
	id := uuid.NewString()

	if snapshotB64 != "" {
		imagePath, err = s.save(id+"_full.jpg", snapshotB64)
		if err != nil {
			return "", "", err
		}
	}
	if cropB64 != "" {
		cropPath, err = s.save(id+"_crop.jpg", cropB64)
		if err != nil {
			return "", "", err
		}
	}
	return imagePath, cropPath, nil
}

func (s *Store) save(name, dataB64 string) (string, error) {
	// Tolerate data-URL prefixes from browser capture components.
	if idx := strings.Index(dataB64, "base64,"); idx >= 0 {
		dataB64 = dataB64[idx+len("base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(dataB64)
	if err != nil {
		return "", fmt.Errorf("decode snapshot: %w", err)
	}
	path := filepath.Join(s.runDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return path, nil
}
