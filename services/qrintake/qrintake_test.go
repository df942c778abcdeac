package qrintake

import (
	"strings"
	"testing"
	"time"

	"m3logger/errcode"
	"m3logger/types"
)

const goodMeta = `{"test_id":"ABC12345","description":"bench test","labels":["x"]}`

const goodConfig = `{
	"type": "device_config", "version": "1",
	"wifi": {"ssid": "lab-net", "password": "hunter2hunter2"},
	"mqtt": {"host": "broker.local", "port": 1883, "device_id": "m3l_0a1b2c"}
}`

func TestParseMetadataValid(t *testing.T) {
	m, err := ParseMetadata([]byte(goodMeta))
	if err != nil {
		t.Fatalf("ParseMetadata: %v", err)
	}
	if m.TestID != "ABC12345" || m.Description != "bench test" || len(m.Labels) != 1 {
		t.Fatalf("meta = %+v", m)
	}
}

func TestParseMetadataRejections(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		code errcode.Code
	}{
		{"unparseable", `{"test_id":`, errcode.InvalidPayload},
		{"config shape", goodConfig, errcode.WrongShape},
		{"short test id", `{"test_id":"ABC","description":"d","labels":["x"]}`, errcode.InvalidParams},
		{"non alnum test id", `{"test_id":"ABC1234!","description":"d","labels":["x"]}`, errcode.InvalidParams},
		{"empty description", `{"test_id":"ABC12345","description":"","labels":["x"]}`, errcode.InvalidParams},
		{"no labels", `{"test_id":"ABC12345","description":"d","labels":[]}`, errcode.InvalidParams},
		{"label too long", `{"test_id":"ABC12345","description":"d","labels":["` +
			strings.Repeat("a", types.MaxLabelLen+1) + `"]}`, errcode.InvalidParams},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseMetadata([]byte(tc.raw)); !errcode.Is(err, tc.code) {
				t.Fatalf("ParseMetadata = %v, want %v", err, tc.code)
			}
		})
	}
}

func TestParseDeviceConfigValid(t *testing.T) {
	cfg, err := ParseDeviceConfig([]byte(goodConfig))
	if err != nil {
		t.Fatalf("ParseDeviceConfig: %v", err)
	}
	if cfg.WiFiSSID != "lab-net" || cfg.MQTTHost != "broker.local" || cfg.MQTTPort != 1883 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.DeviceID != "m3l_0a1b2c" || !cfg.MQTTEnabled {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestMetadataShapeRejectedByConfigParser(t *testing.T) {
	// The other shape is a wrong-shape rejection, not a malformed config.
	_, err := ParseDeviceConfig([]byte(goodMeta))
	if !errcode.Is(err, errcode.WrongShape) {
		t.Fatalf("ParseDeviceConfig(metadata) = %v, want WrongShape", err)
	}
}

func TestParseDeviceConfigRejections(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		code errcode.Code
	}{
		{"unparseable", `{{`, errcode.InvalidPayload},
		{"unknown type", `{"type":"firmware_update","wifi":{"ssid":"s"}}`, errcode.InvalidParams},
		{"missing ssid", `{"type":"device_config","wifi":{"ssid":""}}`, errcode.InvalidParams},
		{"short wifi password", `{"type":"device_config","wifi":{"ssid":"s","password":"short"}}`, errcode.InvalidParams},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseDeviceConfig([]byte(tc.raw)); !errcode.Is(err, tc.code) {
				t.Fatalf("ParseDeviceConfig = %v, want %v", err, tc.code)
			}
		})
	}
}

type fakeReader struct {
	content string
	polls   int
}

func (f *fakeReader) Poll() (string, bool, error) {
	f.polls++
	if f.content == "" {
		return "", false, nil
	}
	c := f.content
	f.content = ""
	return c, true, nil
}

func TestIntakeRateLimit(t *testing.T) {
	rd := &fakeReader{content: goodMeta}
	in := NewIntake(rd)
	now := time.Unix(1000, 0)
	in.now = func() time.Time { return now }
	in.Reset()

	raw, ok, err := in.Poll()
	if err != nil || !ok || string(raw) != goodMeta {
		t.Fatalf("Poll = %q, %v, %v", raw, ok, err)
	}

	// Within the interval: the device is not touched.
	for i := 0; i < 10; i++ {
		if _, ok, _ := in.Poll(); ok {
			t.Fatal("rate limiter let a poll through early")
		}
	}
	if rd.polls != 1 {
		t.Fatalf("device polled %d times, want 1", rd.polls)
	}

	now = now.Add(DefaultPollInterval)
	if _, _, err := in.Poll(); err != nil {
		t.Fatalf("Poll after interval: %v", err)
	}
	if rd.polls != 2 {
		t.Fatalf("device polled %d times, want 2", rd.polls)
	}
}
