package types

// Network configuration field limits. Validation happens before any
// persistence; these are the documented bounds for every string field.
const (
	MaxDeviceIDLen     = 16 // 1..16 alphanumeric + underscore
	MaxSSIDLen         = 32 // 1..32 chars (IEEE 802.11)
	MinWiFiPasswordLen = 8  // WPA2 minimum, when present
	MaxWiFiPasswordLen = 63 // WPA2 maximum
	MaxMQTTHostLen     = 64 // 1..64 chars
	MaxMQTTUserLen     = 32 // 0..32 chars, optional
	MaxMQTTPasswordLen = 32 // 0..32 chars, optional
	MinMQTTPort        = 1
	MaxMQTTPort        = 65535
)

// NetworkConfig is the persisted device identity + WiFi + MQTT settings.
// The full copy lives on removable storage; the critical subset
// (device_id, wifi ssid) is mirrored in the key-value store so it survives
// a storage swap.
type NetworkConfig struct {
	Version      string `json:"version"`
	DeviceID     string `json:"device_id"`
	WiFiSSID     string `json:"wifi_ssid"`
	WiFiPassword string `json:"wifi_password"`
	MQTTHost     string `json:"mqtt_host"`
	MQTTPort     uint16 `json:"mqtt_port"`
	MQTTUsername string `json:"mqtt_username"`
	MQTTPassword string `json:"mqtt_password"`
	MQTTEnabled  bool   `json:"mqtt_enabled"`
}

// DeviceConfigPayload is the device-config QR shape. The Type field is the
// discriminator between the two payload shapes a scan can carry.
type DeviceConfigPayload struct {
	Type    string `json:"type"` // must be "device_config"
	Version string `json:"version"`
	WiFi    struct {
		SSID     string `json:"ssid"`
		Password string `json:"password"`
	} `json:"wifi"`
	MQTT struct {
		Host     string `json:"host"`
		Port     uint16 `json:"port"`
		DeviceID string `json:"device_id"`
		Username string `json:"username"`
		Password string `json:"password"`
	} `json:"mqtt"`
}
