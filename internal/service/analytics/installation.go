package analytics

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const installationFile = "installation.json"

type installationRecord struct {
	InstallationID string `json:"installation_id"`
}

// NewID returns a random 32-character hex identifier
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// LoadInstallationID returns the id persisted in dataDir, creating it on first
// use. created is true when a new id was written.
func LoadInstallationID(dataDir string) (id string, created bool, err error) {
	path := filepath.Join(dataDir, installationFile)

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var rec installationRecord
		if jsonErr := json.Unmarshal(data, &rec); jsonErr == nil {
			if id := strings.TrimSpace(rec.InstallationID); id != "" {
				return id, false, nil
			}
		}
	case !errors.Is(err, fs.ErrNotExist):
		return "", false, fmt.Errorf("read installation id: %w", err)
	}

	id = NewID()
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", false, fmt.Errorf("create data directory: %w", err)
	}
	payload, err := json.MarshalIndent(installationRecord{InstallationID: id}, "", "  ")
	if err != nil {
		return "", false, err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0644); err != nil {
		return "", false, fmt.Errorf("write installation id: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", false, fmt.Errorf("write installation id: %w", err)
	}
	return id, true, nil
}
