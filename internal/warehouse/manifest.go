package warehouse

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/granarydb/granary/pkg/types"
)

// Manifest is the JSON sidecar persisted next to the partition files.
// It pins the partition layout and the established schema so both
// survive process restarts; a dataset opened with a conflicting layout
// is rejected rather than silently re-partitioned.
type Manifest struct {
	PartitionCount int          `json:"partition_count"`
	PartitionSize  int          `json:"partition_size"`
	Compression    string       `json:"compression"`
	Header         types.Header `json:"header,omitempty"`
	CreatedAt      int64        `json:"created_at"`
}

// LoadManifest reads the manifest at path. Returns (nil, nil) if no
// manifest exists, which means a fresh dataset.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("manifest: read failed: %v: %w", err, types.ErrIOFailure)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest: failed to parse %s: %w", path, err)
	}
	return &m, nil
}

// Save writes the manifest to path.
func (m *Manifest) Save(path string) error {
	if m.CreatedAt == 0 {
		m.CreatedAt = time.Now().Unix()
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("manifest: marshal failed: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("manifest: write failed: %v: %w", err, types.ErrIOFailure)
	}
	return nil
}
