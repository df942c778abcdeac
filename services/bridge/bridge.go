// Package bridge uplinks local bus telemetry to the configured MQTT broker.
// It supervises a single link with exponential backoff and republishes on
// reconfiguration; the recording path never depends on it.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"m3logger/bus"
	"m3logger/types"
)

// uplinked are the local topics forwarded to the broker.
var uplinked = []bus.Topic{
	{"recorder", "state"},
	{"recorder", "transition"},
	{"recorder", "stats"},
	{"recorder", "session"},
	{"battery", "value"},
	{"timesource", "state"},
	{"indicator", "state"},
}

// Start runs the bridge until ctx is cancelled. It listens for a
// NetworkConfig on {"config","bridge"} and (re)establishes the link; a
// config with MQTT disabled tears the link down.
func Start(ctx context.Context, conn *bus.Connection) {
	s := &Service{
		conn:       conn,
		stateTopic: bus.Topic{"bridge", "state"},
	}
	s.run(ctx)
}

type Service struct {
	conn       *bus.Connection
	stateTopic bus.Topic

	mu     sync.Mutex
	curRun context.CancelFunc
}

func (s *Service) run(ctx context.Context) {
	cfgSub := s.conn.Subscribe(bus.Topic{"config", "bridge"})
	defer s.conn.Unsubscribe(cfgSub)

	s.publishState("idle", "awaiting_config", nil)

	for {
		select {
		case <-ctx.Done():
			s.stopCurrent()
			return
		case msg, ok := <-cfgSub.Channel():
			if !ok {
				s.publishState("error", "config_subscription_closed", nil)
				return
			}
			cfg, err := decodeConfig(msg.Payload)
			if err != nil {
				s.publishState("error", "config_decode_failed", err)
				continue
			}
			s.reconfigure(ctx, cfg)
		}
	}
}

func (s *Service) stopCurrent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.curRun != nil {
		s.curRun()
		s.curRun = nil
	}
}

func (s *Service) reconfigure(parent context.Context, cfg types.NetworkConfig) {
	s.mu.Lock()
	if s.curRun != nil {
		s.curRun()
		s.curRun = nil
	}
	if !cfg.MQTTEnabled || cfg.MQTTHost == "" {
		s.mu.Unlock()
		s.publishState("idle", "uplink_disabled", nil)
		return
	}
	ctx, cancel := context.WithCancel(parent)
	s.curRun = cancel
	s.mu.Unlock()

	go s.runLink(ctx, cfg)
}

func (s *Service) runLink(ctx context.Context, cfg types.NetworkConfig) {
	backoff := backoffSeq(250*time.Millisecond, 5*time.Second)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		client, err := s.dial(ctx, cfg)
		if err != nil {
			delay := backoff()
			s.publishState("degraded", "dial_failed_retrying", fmt.Errorf("%v (retry in %s)", err, delay))
			if !sleep(ctx, delay) {
				return
			}
			continue
		}

		s.publishState("up", "link_established", nil)
		err = s.forward(ctx, client, cfg.DeviceID)
		client.Disconnect(250)
		if err == nil {
			return // clean shutdown
		}
		delay := backoff()
		s.publishState("degraded", "link_lost_retrying", fmt.Errorf("%v (retry in %s)", err, delay))
		if !sleep(ctx, delay) {
			return
		}
	}
}

func (s *Service) dial(ctx context.Context, cfg types.NetworkConfig) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTHost, cfg.MQTTPort)).
		SetClientID(cfg.DeviceID).
		SetConnectTimeout(10 * time.Second).
		SetAutoReconnect(false).
		SetCleanSession(true)
	if cfg.MQTTUsername != "" {
		opts.SetUsername(cfg.MQTTUsername)
		opts.SetPassword(cfg.MQTTPassword)
	}

	client := mqtt.NewClient(opts)
	tok := client.Connect()
	select {
	case <-ctx.Done():
		client.Disconnect(0)
		return nil, ctx.Err()
	case <-tok.Done():
	}
	if err := tok.Error(); err != nil {
		return nil, err
	}
	return client, nil
}

// forward owns the active link: local bus messages out to the broker under
// <device_id>/<topic>. Returns nil only on ctx cancellation.
func (s *Service) forward(ctx context.Context, client mqtt.Client, deviceID string) error {
	subs := make([]*bus.Subscription, 0, len(uplinked))
	agg := make(chan *bus.Message, 64)
	done := make(chan struct{})
	defer close(done)

	var wg sync.WaitGroup
	for _, topic := range uplinked {
		sub := s.conn.Subscribe(topic)
		subs = append(subs, sub)
		wg.Add(1)
		go func(sub *bus.Subscription) {
			defer wg.Done()
			for msg := range sub.Channel() {
				select {
				case agg <- msg:
				case <-done:
					return
				}
			}
		}(sub)
	}
	defer func() {
		for _, sub := range subs {
			s.conn.Unsubscribe(sub)
		}
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-agg:
			payload, err := json.Marshal(msg.Payload)
			if err != nil {
				continue
			}
			remote := deviceID + "/" + strings.Join(msg.Topic, "/")
			tok := client.Publish(remote, 0, msg.Retained, payload)
			select {
			case <-tok.Done():
				if err := tok.Error(); err != nil {
					return err
				}
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func decodeConfig(p any) (types.NetworkConfig, error) {
	var cfg types.NetworkConfig
	switch v := p.(type) {
	case types.NetworkConfig:
		return v, nil
	case []byte:
		err := json.Unmarshal(v, &cfg)
		return cfg, err
	case string:
		err := json.Unmarshal([]byte(v), &cfg)
		return cfg, err
	default:
		return cfg, fmt.Errorf("unsupported config payload type: %T", p)
	}
}

func (s *Service) publishState(level, status string, err error) {
	payload := map[string]any{
		"level":  level,
		"status": status,
		"ts_ms":  time.Now().UnixMilli(),
	}
	if err != nil {
		payload["error"] = err.Error()
	}
	s.conn.Publish(s.conn.NewMessage(s.stateTopic, payload, true))
}

func backoffSeq(min, max time.Duration) func() time.Duration {
	if min <= 0 {
		min = 100 * time.Millisecond
	}
	if max < min {
		max = min
	}
	cur := min
	return func() time.Duration {
		d := cur
		cur *= 2
		if cur > max {
			cur = max
		}
		return d
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
