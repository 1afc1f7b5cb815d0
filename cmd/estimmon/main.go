package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"os"

	"github.com/golang/glog"

	"github.com/robotalks/estim.go/pkg/comm"
	fx "github.com/robotalks/estim.go/pkg/framework"
	"github.com/robotalks/estim.go/pkg/monitor"
	"github.com/robotalks/estim.go/pkg/mqtt"
	"github.com/robotalks/estim.go/pkg/transport"
)

var (
	mqttURL    = "mqtt://localhost:1883/estim/"
	configFile = "estimmon.toml"
)

func init() {
	if val := os.Getenv("ESTIM_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
	flag.StringVar(&configFile, "config", configFile, "Monitor config file.")
	transport.SetupFlags()
}

func run(port *transport.Config) error {
	conf, err := monitor.LoadConfig(configFile)
	if err != nil {
		return err
	}
	if conf.DeviceID == "" {
		conf.DeviceID = monitor.DefaultDeviceID()
	}

	stream, err := port.Open()
	if err != nil {
		return err
	}
	defer stream.Close()

	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		return err
	}
	q.TopicPrefix += conf.DeviceID + "/"
	mon := monitor.New(conf, comm.NewClient(comm.NewSession(stream)), q)
	// Retained values may be lost with a broker restart.
	q.OnConnect = func(*mqtt.Queue) { mon.Republish() }
	q.OnDisconnect = func(*mqtt.Queue) { glog.Warning("samples are dropped until the broker is back") }
	if err := q.Connect(); err != nil {
		return err
	}
	defer q.Close()

	glog.Infof("monitoring %d registers as %q", len(conf.Registers), conf.DeviceID)
	return fx.Run(mon)
}

func main() {
	flag.Parse()
	err := run(transport.NewConfig())
	if err != nil {
		glog.Error(err)
	}
	glog.Flush()
	if err != nil {
		os.Exit(1)
	}
}
