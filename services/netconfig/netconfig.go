// Package netconfig manages the persisted device identity and network
// credentials. The full-fidelity copy lives as JSON on removable storage;
// the critical subset (device id, SSID) is mirrored in a small key-value
// store that survives a storage swap.
//
// A candidate config from a QR scan is only persisted after a bounded
// connectivity probe succeeds; a failed probe leaves the active config
// untouched.
package netconfig

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"m3logger/errcode"
	"m3logger/services/qrintake"
	"m3logger/types"
)

// KV is the persistent key-value capability for the critical subset.
type KV interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

// Critical subset keys.
const (
	KeyDeviceID = "device_id"
	KeyWiFiSSID = "wifi_ssid"
)

// Prober tests candidate credentials within a bounded deadline.
type Prober interface {
	Probe(ctx context.Context, cfg types.NetworkConfig) error
}

// Manager owns the active NetworkConfig.
type Manager struct {
	path   string // full JSON copy on removable storage
	kv     KV
	prober Prober

	cur types.NetworkConfig
}

func NewManager(path string, kv KV, prober Prober) *Manager {
	return &Manager{path: path, kv: kv, prober: prober}
}

// Current returns the active config.
func (m *Manager) Current() types.NetworkConfig { return m.cur }

// Load reads the full copy, falling back to the KV critical subset when the
// removable medium was swapped or wiped. A missing device id is generated
// and persisted so the device keeps a stable identity.
func (m *Manager) Load() error {
	b, err := os.ReadFile(m.path)
	switch {
	case err == nil:
		if jsonErr := json.Unmarshal(b, &m.cur); jsonErr != nil {
			log.Printf("netconfig: corrupt config file, starting from critical subset: %v", jsonErr)
			m.cur = types.NetworkConfig{}
		}
	case os.IsNotExist(err):
		m.cur = types.NetworkConfig{}
	default:
		return &errcode.E{C: errcode.StorageUnavail, Op: "load_config", Err: err}
	}

	if m.cur.DeviceID == "" {
		if id, ok, _ := m.kv.Get(KeyDeviceID); ok {
			m.cur.DeviceID = id
		}
	}
	if m.cur.WiFiSSID == "" {
		if ssid, ok, _ := m.kv.Get(KeyWiFiSSID); ok {
			m.cur.WiFiSSID = ssid
		}
	}
	if m.cur.DeviceID == "" {
		m.cur.DeviceID = GenerateDeviceID()
		log.Printf("netconfig: generated device id %s", m.cur.DeviceID)
		if err := m.kv.Set(KeyDeviceID, m.cur.DeviceID); err != nil {
			return err
		}
	}
	return nil
}

// Save persists the full copy and mirrors the critical subset.
func (m *Manager) Save() error {
	b, err := json.MarshalIndent(m.cur, "", "  ")
	if err != nil {
		return &errcode.E{C: errcode.StorageWrite, Op: "save_config", Err: err}
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, append(b, '\n'), 0o600); err != nil {
		return &errcode.E{C: errcode.StorageWrite, Op: "save_config", Err: err}
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return &errcode.E{C: errcode.StorageWrite, Op: "save_config", Err: err}
	}
	if err := m.kv.Set(KeyDeviceID, m.cur.DeviceID); err != nil {
		return err
	}
	return m.kv.Set(KeyWiFiSSID, m.cur.WiFiSSID)
}

// ApplyCandidate probes a scanned candidate and persists it on success. On
// any failure the active config is not mutated. The candidate keeps the
// existing device id unless it carries its own.
func (m *Manager) ApplyCandidate(ctx context.Context, cand types.NetworkConfig) error {
	if cand.DeviceID == "" {
		cand.DeviceID = m.cur.DeviceID
	}
	if err := qrintake.ValidateNetworkConfig(cand); err != nil {
		return err
	}
	if m.prober != nil {
		if err := m.prober.Probe(ctx, cand); err != nil {
			return &errcode.E{C: errcode.ProbeFailed, Op: "apply_config", Err: err}
		}
	}
	m.cur = cand
	return m.Save()
}

// GenerateDeviceID returns "m3l_" plus 6 random hex chars.
func GenerateDeviceID() string {
	var b [3]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "m3l_000000"
	}
	return "m3l_" + hex.EncodeToString(b[:])
}

// mask hides all but the length of a secret in display output.
func mask(s string) string {
	if s == "" {
		return "(unset)"
	}
	return strings.Repeat("*", len(s))
}

// HandleCommand implements the serial config surface:
// show, set <field> <value>, reset, help.
func (m *Manager) HandleCommand(args []string) string {
	if len(args) == 0 {
		return m.help()
	}
	switch args[0] {
	case "show":
		return m.show()
	case "set":
		if len(args) != 3 {
			return "usage: config set <field> <value>"
		}
		return m.set(args[1], args[2])
	case "reset":
		m.cur = types.NetworkConfig{DeviceID: m.cur.DeviceID}
		if err := m.Save(); err != nil {
			return "reset failed: " + err.Error()
		}
		return "config reset (device id kept)"
	case "help":
		return m.help()
	default:
		return "unknown config command: " + args[0]
	}
}

func (m *Manager) show() string {
	c := m.cur
	var sb strings.Builder
	fmt.Fprintf(&sb, "device_id:     %s\n", c.DeviceID)
	fmt.Fprintf(&sb, "wifi_ssid:     %s\n", c.WiFiSSID)
	fmt.Fprintf(&sb, "wifi_password: %s\n", mask(c.WiFiPassword))
	fmt.Fprintf(&sb, "mqtt_host:     %s\n", c.MQTTHost)
	fmt.Fprintf(&sb, "mqtt_port:     %d\n", c.MQTTPort)
	fmt.Fprintf(&sb, "mqtt_username: %s\n", c.MQTTUsername)
	fmt.Fprintf(&sb, "mqtt_password: %s\n", mask(c.MQTTPassword))
	fmt.Fprintf(&sb, "mqtt_enabled:  %v", c.MQTTEnabled)
	return sb.String()
}

func (m *Manager) set(field, value string) string {
	cand := m.cur
	switch field {
	case "device_id":
		cand.DeviceID = value
	case "wifi_ssid":
		cand.WiFiSSID = value
	case "wifi_password":
		cand.WiFiPassword = value
	case "mqtt_host":
		cand.MQTTHost = value
	case "mqtt_port":
		p, err := strconv.ParseUint(value, 10, 16)
		if err != nil || p == 0 {
			return "invalid port: " + value
		}
		cand.MQTTPort = uint16(p)
	case "mqtt_username":
		cand.MQTTUsername = value
	case "mqtt_password":
		cand.MQTTPassword = value
	case "mqtt_enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return "invalid bool: " + value
		}
		cand.MQTTEnabled = b
	default:
		return "unknown field: " + field
	}
	if err := qrintake.ValidateNetworkConfig(cand); err != nil {
		return "rejected: " + err.Error()
	}
	m.cur = cand
	if err := m.Save(); err != nil {
		return "save failed: " + err.Error()
	}
	return field + " updated"
}

func (m *Manager) help() string {
	return strings.Join([]string{
		"config show                  print active config (secrets masked)",
		"config set <field> <value>   update one field and persist",
		"config reset                 clear credentials, keep device id",
		"config help                  this text",
	}, "\n")
}
