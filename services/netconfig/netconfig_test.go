package netconfig

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"m3logger/errcode"
	"m3logger/types"
)

type fakeProber struct {
	err    error
	probed int
}

func (f *fakeProber) Probe(ctx context.Context, cfg types.NetworkConfig) error {
	f.probed++
	return f.err
}

func newTestManager(t *testing.T, prober Prober) *Manager {
	t.Helper()
	dir := t.TempDir()
	kv, err := NewFileKV(filepath.Join(dir, "kv.json"))
	if err != nil {
		t.Fatalf("NewFileKV: %v", err)
	}
	m := NewManager(filepath.Join(dir, "netconfig.json"), kv, prober)
	if err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return m
}

func candidate() types.NetworkConfig {
	return types.NetworkConfig{
		WiFiSSID:     "lab-net",
		WiFiPassword: "hunter2hunter2",
		MQTTHost:     "broker.local",
		MQTTPort:     1883,
		MQTTEnabled:  true,
	}
}

func TestLoadGeneratesDeviceID(t *testing.T) {
	m := newTestManager(t, nil)
	id := m.Current().DeviceID
	if !strings.HasPrefix(id, "m3l_") || len(id) != 10 {
		t.Fatalf("device id = %q", id)
	}

	// Critical subset survives the removable config file going away: a new
	// manager over the same KV keeps the identity.
	kv := m.kv
	m2 := NewManager(filepath.Join(t.TempDir(), "netconfig.json"), kv, nil)
	if err := m2.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m2.Current().DeviceID != id {
		t.Fatalf("device id changed across storage swap: %q vs %q", m2.Current().DeviceID, id)
	}
}

func TestApplyCandidatePersistsOnProbeSuccess(t *testing.T) {
	pr := &fakeProber{}
	m := newTestManager(t, pr)
	id := m.Current().DeviceID

	if err := m.ApplyCandidate(context.Background(), candidate()); err != nil {
		t.Fatalf("ApplyCandidate: %v", err)
	}
	if pr.probed != 1 {
		t.Fatalf("probed %d times, want 1", pr.probed)
	}
	if m.Current().WiFiSSID != "lab-net" || m.Current().DeviceID != id {
		t.Fatalf("config after apply = %+v", m.Current())
	}

	// Reload from disk.
	m2 := NewManager(m.path, m.kv, nil)
	if err := m2.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m2.Current().MQTTHost != "broker.local" {
		t.Fatalf("persisted config = %+v", m2.Current())
	}
}

func TestApplyCandidateDiscardsOnProbeFailure(t *testing.T) {
	pr := &fakeProber{err: errors.New("connect refused")}
	m := newTestManager(t, pr)
	before := m.Current()

	err := m.ApplyCandidate(context.Background(), candidate())
	if !errcode.Is(err, errcode.ProbeFailed) {
		t.Fatalf("ApplyCandidate = %v, want ProbeFailed", err)
	}
	if m.Current() != before {
		t.Fatalf("active config mutated by failed probe: %+v", m.Current())
	}
}

func TestCommandSurface(t *testing.T) {
	m := newTestManager(t, nil)

	if out := m.HandleCommand([]string{"set", "wifi_ssid", "lab-net"}); out != "wifi_ssid updated" {
		t.Fatalf("set ssid: %q", out)
	}
	if out := m.HandleCommand([]string{"set", "wifi_password", "hunter2hunter2"}); out != "wifi_password updated" {
		t.Fatalf("set password: %q", out)
	}
	if out := m.HandleCommand([]string{"set", "mqtt_port", "99999"}); !strings.HasPrefix(out, "invalid port") {
		t.Fatalf("bad port accepted: %q", out)
	}
	if out := m.HandleCommand([]string{"set", "wifi_password", "short"}); !strings.HasPrefix(out, "rejected") {
		t.Fatalf("short password accepted: %q", out)
	}

	show := m.HandleCommand([]string{"show"})
	if strings.Contains(show, "hunter2hunter2") {
		t.Fatalf("show leaks password:\n%s", show)
	}
	if !strings.Contains(show, "**************") {
		t.Fatalf("show does not mask password:\n%s", show)
	}
	if !strings.Contains(show, "lab-net") {
		t.Fatalf("show missing ssid:\n%s", show)
	}

	id := m.Current().DeviceID
	if out := m.HandleCommand([]string{"reset"}); !strings.Contains(out, "reset") {
		t.Fatalf("reset: %q", out)
	}
	if m.Current().DeviceID != id || m.Current().WiFiSSID != "" {
		t.Fatalf("reset result = %+v", m.Current())
	}

	if out := m.HandleCommand([]string{"help"}); !strings.Contains(out, "config set") {
		t.Fatalf("help: %q", out)
	}
	if out := m.HandleCommand(nil); !strings.Contains(out, "config show") {
		t.Fatalf("bare config: %q", out)
	}
}

func TestFileKVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.json")
	kv, err := NewFileKV(path)
	if err != nil {
		t.Fatalf("NewFileKV: %v", err)
	}
	if err := kv.Set("device_id", "m3l_abc123"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	kv2, err := NewFileKV(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	v, ok, err := kv2.Get("device_id")
	if err != nil || !ok || v != "m3l_abc123" {
		t.Fatalf("Get = %q, %v, %v", v, ok, err)
	}
	if err := kv2.Delete("device_id"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := kv2.Get("device_id"); ok {
		t.Fatal("deleted key still present")
	}
}
