package sessions

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// loadSessionRecord reads the {channel: session_identifier} document
// from path. A missing or corrupt file is tolerated as empty, per
// spec's persistence contract.
func loadSessionRecord(path string) map[string]string {
	data, err := os.ReadFile(path)
	if err != nil {
		return map[string]string{}
	}
	var rec map[string]string
	if err := json.Unmarshal(data, &rec); err != nil {
		return map[string]string{}
	}
	if rec == nil {
		rec = map[string]string{}
	}
	return rec
}

// saveSessionRecordAtomic rewrites the session record file in full,
// writing to a sibling temp file and renaming over the target so a
// torn write never loses the prior contents.
func saveSessionRecordAtomic(path string, rec map[string]string) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".sessions-*.json.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmpPath, path)
}
