// Package qrintake parses scanned payloads into exactly one of two shapes:
// session metadata or a device configuration. A payload is never both; each
// parser rejects the other shape outright instead of half-validating it.
//
// Rejection reasons stay distinguishable: errcode.InvalidPayload means the
// structure did not parse (possibly a read problem), errcode.InvalidParams
// means well-formed but out of bounds, errcode.WrongShape means the payload
// belongs to the other parser.
package qrintake

import (
	"encoding/json"

	"m3logger/errcode"
	"m3logger/types"
)

// deviceConfigType is the discriminator value carried by config payloads.
const deviceConfigType = "device_config"

// probe pulls out just the discriminating fields.
type probe struct {
	Type   string          `json:"type"`
	TestID json.RawMessage `json:"test_id"`
}

// ParseMetadata validates a session-metadata payload.
func ParseMetadata(raw []byte) (types.SessionMeta, error) {
	var p probe
	if err := json.Unmarshal(raw, &p); err != nil {
		return types.SessionMeta{}, &errcode.E{C: errcode.InvalidPayload, Op: "parse_metadata", Err: err}
	}
	if p.Type != "" {
		return types.SessionMeta{}, &errcode.E{C: errcode.WrongShape, Op: "parse_metadata", Msg: "device-config payload"}
	}

	var m types.SessionMeta
	if err := json.Unmarshal(raw, &m); err != nil {
		return types.SessionMeta{}, &errcode.E{C: errcode.InvalidPayload, Op: "parse_metadata", Err: err}
	}
	if err := validateMetadata(m); err != nil {
		return types.SessionMeta{}, err
	}
	return m, nil
}

func validateMetadata(m types.SessionMeta) error {
	if len(m.TestID) != types.TestIDLen || !isAlnum(m.TestID) {
		return &errcode.E{C: errcode.InvalidParams, Op: "parse_metadata", Msg: "test_id must be 8 alphanumeric chars"}
	}
	if len(m.Description) < 1 || len(m.Description) > types.MaxDescriptionLen {
		return &errcode.E{C: errcode.InvalidParams, Op: "parse_metadata", Msg: "description length out of range"}
	}
	if len(m.Labels) < 1 || len(m.Labels) > types.MaxLabels {
		return &errcode.E{C: errcode.InvalidParams, Op: "parse_metadata", Msg: "labels count out of range"}
	}
	for _, l := range m.Labels {
		if len(l) < 1 || len(l) > types.MaxLabelLen {
			return &errcode.E{C: errcode.InvalidParams, Op: "parse_metadata", Msg: "label length out of range"}
		}
	}
	return nil
}

// ParseDeviceConfig validates a device-config payload and maps it onto a
// NetworkConfig candidate. The candidate is not persisted here.
func ParseDeviceConfig(raw []byte) (types.NetworkConfig, error) {
	var p probe
	if err := json.Unmarshal(raw, &p); err != nil {
		return types.NetworkConfig{}, &errcode.E{C: errcode.InvalidPayload, Op: "parse_config", Err: err}
	}
	if p.TestID != nil {
		return types.NetworkConfig{}, &errcode.E{C: errcode.WrongShape, Op: "parse_config", Msg: "session-metadata payload"}
	}
	if p.Type != deviceConfigType {
		return types.NetworkConfig{}, &errcode.E{C: errcode.InvalidParams, Op: "parse_config", Msg: "unknown type discriminator"}
	}

	var d types.DeviceConfigPayload
	if err := json.Unmarshal(raw, &d); err != nil {
		return types.NetworkConfig{}, &errcode.E{C: errcode.InvalidPayload, Op: "parse_config", Err: err}
	}
	if d.WiFi.SSID == "" {
		return types.NetworkConfig{}, &errcode.E{C: errcode.InvalidParams, Op: "parse_config", Msg: "ssid required"}
	}
	cfg := types.NetworkConfig{
		Version:      d.Version,
		DeviceID:     d.MQTT.DeviceID,
		WiFiSSID:     d.WiFi.SSID,
		WiFiPassword: d.WiFi.Password,
		MQTTHost:     d.MQTT.Host,
		MQTTPort:     d.MQTT.Port,
		MQTTUsername: d.MQTT.Username,
		MQTTPassword: d.MQTT.Password,
		MQTTEnabled:  d.MQTT.Host != "",
	}
	if err := ValidateNetworkConfig(cfg); err != nil {
		return types.NetworkConfig{}, err
	}
	return cfg, nil
}

// ValidateNetworkConfig enforces the documented bounds on every field. Also
// used by the serial config surface before persisting edits.
func ValidateNetworkConfig(c types.NetworkConfig) error {
	bad := func(msg string) error {
		return &errcode.E{C: errcode.InvalidParams, Op: "validate_config", Msg: msg}
	}
	if c.DeviceID != "" {
		if len(c.DeviceID) > types.MaxDeviceIDLen || !isIdent(c.DeviceID) {
			return bad("device_id out of range")
		}
	}
	if len(c.WiFiSSID) > types.MaxSSIDLen {
		return bad("ssid too long")
	}
	if c.WiFiPassword != "" {
		if len(c.WiFiPassword) < types.MinWiFiPasswordLen || len(c.WiFiPassword) > types.MaxWiFiPasswordLen {
			return bad("wifi password length out of range")
		}
	}
	if c.MQTTHost != "" {
		if len(c.MQTTHost) > types.MaxMQTTHostLen {
			return bad("mqtt host too long")
		}
		if c.MQTTPort < types.MinMQTTPort {
			return bad("mqtt port out of range")
		}
	}
	if len(c.MQTTUsername) > types.MaxMQTTUserLen {
		return bad("mqtt username too long")
	}
	if len(c.MQTTPassword) > types.MaxMQTTPasswordLen {
		return bad("mqtt password too long")
	}
	return nil
}

func isAlnum(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		default:
			return false
		}
	}
	return true
}

func isIdent(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		default:
			return false
		}
	}
	return true
}
