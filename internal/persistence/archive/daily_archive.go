package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"idlecraft.ai/internal/persistence/snapshot"
)

type DailyArchiveMeta struct {
	Day       string `json:"day"`
	Tick      uint64 `json:"tick"`
	SessionID string `json:"session_id"`
	Seed      int64  `json:"seed"`
	Snapshot  string `json:"snapshot"`
	SavedAt   string `json:"saved_at"`
	Tasks     int    `json:"tasks"`
}

// ArchiveDailySnapshot copies the first snapshot of each simulated UTC day into
// `dataDir/archives/<YYYY-MM-DD>/`. Later snapshots of an archived day are
// ignored; meta.json marks a day as done.
func ArchiveDailySnapshot(dataDir, snapshotPath string, snap snapshot.SnapshotV1) (day string, archivedPath string, archived bool, err error) {
	if snap.Header.SavedAt.IsZero() {
		return "", "", false, nil
	}
	day = snap.Header.SavedAt.UTC().Format("2006-01-02")
	archiveDir := filepath.Join(dataDir, "archives", day)
	metaPath := filepath.Join(archiveDir, "meta.json")
	if _, err := os.Stat(metaPath); err == nil {
		return day, "", false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return day, "", false, err
	}

	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return day, "", false, err
	}
	dst := filepath.Join(archiveDir, filepath.Base(snapshotPath))
	if err := copyFile(snapshotPath, dst); err != nil {
		return day, "", false, fmt.Errorf("archive %s: %w", day, err)
	}

	meta := DailyArchiveMeta{
		Day:       day,
		Tick:      snap.Header.Tick,
		SessionID: snap.Header.SessionID.String(),
		Seed:      snap.Seed,
		Snapshot:  filepath.Base(dst),
		SavedAt:   snap.Header.SavedAt.UTC().Format(time.RFC3339Nano),
		Tasks:     len(snap.Tasks),
	}
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return day, "", false, err
	}
	if err := os.WriteFile(metaPath, b, 0o644); err != nil {
		return day, "", false, err
	}
	return day, dst, true, nil
}

// ReadMeta loads the meta.json of an archived day.
func ReadMeta(dataDir, day string) (DailyArchiveMeta, error) {
	var m DailyArchiveMeta
	b, err := os.ReadFile(filepath.Join(dataDir, "archives", day, "meta.json"))
	if err != nil {
		return m, err
	}
	err = json.Unmarshal(b, &m)
	return m, err
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
