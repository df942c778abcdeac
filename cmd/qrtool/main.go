// qrtool builds and checks the JSON payloads the logger expects inside QR
// codes. Pipe the output of `gen` through any QR encoder; `check` validates
// a payload file exactly the way the device will.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"m3logger/services/qrintake"
	"m3logger/types"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	switch os.Args[1] {
	case "gen":
		genMeta(os.Args[2:])
	case "gen-config":
		genConfig(os.Args[2:])
	case "check":
		check(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  qrtool gen -id RUN00001 -desc "vibration rig A" [-labels a,b,c]
  qrtool gen-config -ssid NET -pass secret [-host broker -port 1883 -device m3l_ab12cd -user u -mqtt-pass p]
  qrtool check <payload.json>`)
}

func genMeta(args []string) {
	fs := flag.NewFlagSet("gen", flag.ExitOnError)
	id := fs.String("id", "", "test id, 8 alphanumeric chars")
	desc := fs.String("desc", "", "description")
	labels := fs.String("labels", "", "comma-separated labels")
	_ = fs.Parse(args)

	meta := types.SessionMeta{TestID: *id, Description: *desc}
	if *labels != "" {
		meta.Labels = strings.Split(*labels, ",")
	}
	out, _ := json.Marshal(meta)

	// Round-trip through the device parser so a bad payload never ships.
	if _, err := qrintake.ParseMetadata(out); err != nil {
		fmt.Fprintf(os.Stderr, "qrtool: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}

func genConfig(args []string) {
	fs := flag.NewFlagSet("gen-config", flag.ExitOnError)
	ssid := fs.String("ssid", "", "wifi ssid")
	pass := fs.String("pass", "", "wifi password")
	host := fs.String("host", "", "mqtt broker host (empty = mqtt disabled)")
	port := fs.Uint("port", 1883, "mqtt broker port")
	device := fs.String("device", "", "device id override")
	user := fs.String("user", "", "mqtt username")
	mqttPass := fs.String("mqtt-pass", "", "mqtt password")
	_ = fs.Parse(args)

	var p types.DeviceConfigPayload
	p.Type = "device_config"
	p.WiFi.SSID = *ssid
	p.WiFi.Password = *pass
	p.MQTT.Host = *host
	p.MQTT.Port = uint16(*port)
	p.MQTT.DeviceID = *device
	p.MQTT.Username = *user
	p.MQTT.Password = *mqttPass
	out, _ := json.Marshal(p)

	if _, err := qrintake.ParseDeviceConfig(out); err != nil {
		fmt.Fprintf(os.Stderr, "qrtool: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}

func check(args []string) {
	if len(args) != 1 {
		usage()
		os.Exit(2)
	}
	raw, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "qrtool: %v\n", err)
		os.Exit(1)
	}

	if meta, err := qrintake.ParseMetadata(raw); err == nil {
		fmt.Printf("session metadata: test_id=%s labels=%d\n", meta.TestID, len(meta.Labels))
		return
	}
	if cfg, err := qrintake.ParseDeviceConfig(raw); err == nil {
		fmt.Printf("device config: ssid=%s mqtt_enabled=%v\n", cfg.WiFiSSID, cfg.MQTTEnabled)
		return
	}

	_, metaErr := qrintake.ParseMetadata(raw)
	_, cfgErr := qrintake.ParseDeviceConfig(raw)
	fmt.Fprintf(os.Stderr, "qrtool: not valid as metadata (%v) nor device config (%v)\n", metaErr, cfgErr)
	os.Exit(1)
}
