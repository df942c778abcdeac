package bridge

import (
	"context"
	"testing"
	"time"

	"m3logger/bus"
	"m3logger/types"
)

func TestDisabledConfigReportsIdle(t *testing.T) {
	b := bus.NewBus(16)
	conn := b.NewConnection("bridge")
	watcher := b.NewConnection("watcher")
	stateSub := watcher.Subscribe(bus.Topic{"bridge", "state"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Start(ctx, conn)

	// Initial idle state.
	waitForStatus(t, stateSub, "awaiting_config")

	pub := b.NewConnection("pub")
	pub.Publish(pub.NewMessage(bus.Topic{"config", "bridge"},
		types.NetworkConfig{MQTTEnabled: false}, false))

	waitForStatus(t, stateSub, "uplink_disabled")
}

func TestBadConfigPayloadReported(t *testing.T) {
	b := bus.NewBus(16)
	conn := b.NewConnection("bridge")
	watcher := b.NewConnection("watcher")
	stateSub := watcher.Subscribe(bus.Topic{"bridge", "state"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Start(ctx, conn)
	waitForStatus(t, stateSub, "awaiting_config")

	pub := b.NewConnection("pub")
	pub.Publish(pub.NewMessage(bus.Topic{"config", "bridge"}, 42, false))

	waitForStatus(t, stateSub, "config_decode_failed")
}

func TestDecodeConfigForms(t *testing.T) {
	want := types.NetworkConfig{MQTTHost: "h", MQTTPort: 1883, MQTTEnabled: true}

	got, err := decodeConfig(want)
	if err != nil || got != want {
		t.Fatalf("typed decode = %+v, %v", got, err)
	}
	got, err = decodeConfig([]byte(`{"mqtt_host":"h","mqtt_port":1883,"mqtt_enabled":true}`))
	if err != nil || got.MQTTHost != "h" || !got.MQTTEnabled {
		t.Fatalf("bytes decode = %+v, %v", got, err)
	}
	if _, err := decodeConfig(3.14); err == nil {
		t.Fatal("float payload accepted")
	}
}

func TestBackoffDoubles(t *testing.T) {
	next := backoffSeq(100*time.Millisecond, 500*time.Millisecond)
	want := []time.Duration{100, 200, 400, 500, 500}
	for i, w := range want {
		if got := next(); got != w*time.Millisecond {
			t.Fatalf("backoff %d = %v, want %v", i, got, w*time.Millisecond)
		}
	}
}

func waitForStatus(t *testing.T, sub *bus.Subscription, status string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg := <-sub.Channel():
			m, ok := msg.Payload.(map[string]any)
			if ok && m["status"] == status {
				return
			}
		case <-deadline:
			t.Fatalf("never saw bridge status %q", status)
		}
	}
}
