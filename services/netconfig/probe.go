package netconfig

import (
	"context"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"m3logger/types"
)

// DefaultProbeTimeout bounds the candidate connectivity test.
const DefaultProbeTimeout = 5000 * time.Millisecond

// MQTTProber validates candidate credentials by connecting to the
// configured broker and disconnecting. Candidates without MQTT enabled pass
// trivially; there is nothing testable about bare WiFi credentials from
// userspace here.
type MQTTProber struct {
	Timeout time.Duration
}

func (p *MQTTProber) Probe(ctx context.Context, cfg types.NetworkConfig) error {
	if !cfg.MQTTEnabled || cfg.MQTTHost == "" {
		return nil
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}

	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTHost, cfg.MQTTPort)).
		SetClientID(cfg.DeviceID + "_probe").
		SetConnectTimeout(timeout).
		SetConnectRetry(false).
		SetAutoReconnect(false)
	if cfg.MQTTUsername != "" {
		opts.SetUsername(cfg.MQTTUsername)
		opts.SetPassword(cfg.MQTTPassword)
	}

	client := mqtt.NewClient(opts)
	tok := client.Connect()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	select {
	case <-ctx.Done():
		client.Disconnect(0)
		return ctx.Err()
	case <-deadline.C:
		client.Disconnect(0)
		return errors.New("probe: connect timeout")
	case <-tok.Done():
	}
	if err := tok.Error(); err != nil {
		return err
	}
	client.Disconnect(250)
	return nil
}
