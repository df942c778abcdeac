// m3logger is the logger firmware entrypoint: it assembles the platform
// peripherals, the local bus and the services, then hands control to the
// recorder core's tick loop until a signal arrives.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"m3logger/bus"
	"m3logger/config"
	"m3logger/platform"
	"m3logger/services/battery"
	"m3logger/services/bridge"
	"m3logger/services/console"
	"m3logger/services/indicator"
	"m3logger/services/input"
	"m3logger/services/netconfig"
	"m3logger/services/power"
	"m3logger/services/qrintake"
	"m3logger/services/recorder"
	"m3logger/services/sensor"
	"m3logger/services/storage"
	"m3logger/services/timesync"
)

func main() {
	cfgPath := flag.String("config", "/etc/m3logger.yaml", "settings file")
	noSleep := flag.Bool("no-sleep", false, "disable deep sleep (bench runs)")
	flag.Parse()

	st, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("main: %v", err)
	}
	if *noSleep {
		st.SleepEnabled = false
	}

	dev, err := platform.Open(st)
	if err != nil {
		log.Fatalf("main: %v", err)
	}
	defer dev.Close()

	b := bus.NewBus(64)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Network identity and credentials live on internal storage so they
	// survive card swaps.
	kv, err := netconfig.NewFileKV(st.KVPath)
	if err != nil {
		log.Fatalf("main: kv %s: %v", st.KVPath, err)
	}
	net := netconfig.NewManager(
		filepath.Join(st.StorageRoot, st.NetConfigFile),
		kv,
		&netconfig.MQTTProber{Timeout: st.ProbeTimeout()},
	)
	if err := net.Load(); err != nil {
		log.Printf("main: netconfig load: %v, using defaults", err)
	}

	pwr := power.NewController(dev.Retained, dev.Sleeper)
	log.Printf("main: boot %d, wake cause %s", pwr.BootCount(), pwr.ClassifyWakeCause())

	store := storage.New(st.StorageRoot, storage.Config{
		RecordPosition: st.RecordPosition,
	})
	storageOK := true
	if err := store.Mount(); err != nil {
		log.Printf("main: storage: %v", err)
		storageOK = false
	}

	clock := timesync.New(b.NewConnection("timesync"))
	if dev.GPS != nil {
		go clock.Feed(dev.GPS)
	}

	monitor := input.NewMonitor(dev.Button)
	if st.ButtonIntPin != "" {
		go func() {
			if err := platform.WatchButtonEdge(st.ButtonIntPin, monitor.SignalEdge); err != nil {
				log.Printf("main: %v, falling back to polling", err)
			}
		}()
	}

	core := recorder.NewCore(recorder.Deps{
		Conn:    b.NewConnection("recorder"),
		Input:   monitor,
		Sampler: sensor.NewSampler(dev.IMU, st.SampleRateHz),
		Store:   store,
		Intake:  qrintake.NewIntake(dev.Reader),
		Clock:   clock,
		Power:   pwr,
		Net:     net,
		Ind:     indicator.New(dev.LED, b.NewConnection("indicator")),
	}, recorder.Config{
		LongPress:     st.LongPress(),
		IdleTimeout:   st.IdleTimeout(),
		ScanTimeout:   st.ScanTimeout(),
		ErrorRecovery: st.ErrorRecovery(),
		StatsInterval: st.StatsInterval(),
		ProbeTimeout:  st.ProbeTimeout(),
		SleepEnabled:  st.SleepEnabled,
	})

	go bridge.Start(ctx, b.NewConnection("bridge"))
	bridgeCfg := b.NewConnection("main")
	bridgeCfg.Publish(bridgeCfg.NewMessage(bus.Topic{"config", "bridge"}, net.Current(), true))

	if dev.Gauge != nil {
		batt := battery.New(dev.Gauge, b.NewConnection("battery"))
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
					batt.Tick()
				}
			}
		}()
	}

	// Maintenance console on stdin. config changes republish so the bridge
	// follows without a restart.
	cons := console.New()
	cons.Register("config", func(args []string) string {
		out := net.HandleCommand(args)
		bridgeCfg.Publish(bridgeCfg.NewMessage(bus.Topic{"config", "bridge"}, net.Current(), true))
		return out
	})
	cons.Register("status", func([]string) string {
		return core.State().String()
	})
	go func() { _ = cons.Run(os.Stdin, os.Stdout) }()

	done := make(chan struct{})
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigc
		close(done)
	}()

	core.Boot(storageOK)
	core.Run(done, st.TickInterval())
	log.Printf("main: shutdown")
}
