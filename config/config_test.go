package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s != Defaults() {
		t.Fatalf("settings = %+v, want defaults", s)
	}
}

func TestLoadOverridesSubset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m3logger.yaml")
	doc := "storage_root: /mnt/sd\nsample_rate_hz: 200\nsleep_enabled: false\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.StorageRoot != "/mnt/sd" || s.SampleRateHz != 200 || s.SleepEnabled {
		t.Fatalf("settings = %+v", s)
	}
	// Untouched fields keep their defaults.
	if s.LongPressMs != 3000 || s.GPSBaud != 9600 {
		t.Fatalf("defaults lost: %+v", s)
	}
}

func TestLoadRejectsOutOfRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m3logger.yaml")
	if err := os.WriteFile(path, []byte("sample_rate_hz: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "sample_rate_hz") {
		t.Fatalf("Load = %v, want sample_rate_hz error", err)
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m3logger.yaml")
	if err := os.WriteFile(path, []byte(":\n\t- nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("malformed yaml accepted")
	}
}
