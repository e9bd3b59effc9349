package cmd

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestInstallRestored(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "live.db")
	download := filepath.Join(dir, "download.db")
	writeFile(t, dbPath, "old content")
	writeFile(t, download, "restored content")
	writeFile(t, dbPath+"-wal", "wal")
	writeFile(t, dbPath+"-shm", "shm")

	if err := installRestored(download, dbPath); err != nil {
		t.Fatalf("installRestored: %v", err)
	}

	if got := readFile(t, dbPath); got != "restored content" {
		t.Errorf("live database holds %q", got)
	}
	if got := readFile(t, dbPath+".bak"); got != "old content" {
		t.Errorf("backup holds %q", got)
	}
	if _, err := os.Stat(dbPath + "-wal"); !os.IsNotExist(err) {
		t.Error("expected stale WAL file removed")
	}
	if _, err := os.Stat(dbPath + "-shm"); !os.IsNotExist(err) {
		t.Error("expected stale SHM file removed")
	}
	if _, err := os.Stat(dbPath + ".restore"); !os.IsNotExist(err) {
		t.Error("expected staging file removed")
	}
}

func TestInstallRestoredWithoutPreviousDatabase(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "live.db")
	download := filepath.Join(dir, "download.db")
	writeFile(t, download, "restored content")

	if err := installRestored(download, dbPath); err != nil {
		t.Fatalf("installRestored: %v", err)
	}

	if got := readFile(t, dbPath); got != "restored content" {
		t.Errorf("live database holds %q", got)
	}
	if _, err := os.Stat(dbPath + ".bak"); !os.IsNotExist(err) {
		t.Error("no previous database, no backup expected")
	}
}

func TestInstallRestoredStagingFailureKeepsLiveDatabase(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "live.db")
	writeFile(t, dbPath, "old content")

	// The download path does not exist, so staging fails before the live
	// database is touched.
	err := installRestored(filepath.Join(dir, "missing.db"), dbPath)
	if err == nil {
		t.Fatal("expected staging failure")
	}

	if got := readFile(t, dbPath); got != "old content" {
		t.Errorf("live database must be untouched, holds %q", got)
	}
	if _, err := os.Stat(dbPath + ".bak"); !os.IsNotExist(err) {
		t.Error("failed staging must not create a backup file")
	}
}
