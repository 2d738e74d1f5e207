package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/robotalks/linkping/pkg/frame"
	"github.com/robotalks/linkping/pkg/mqtt"
	report "github.com/robotalks/linkping/pkg/report/mqtt"
)

var (
	mqttURL = "mqtt://localhost:1883/linkping/"
)

func init() {
	if val := os.Getenv("LINKPING_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	if err = q.Connect(); err != nil {
		log.Fatalln(err)
	}

	q.Sub("+/"+report.EventsTopic, mqtt.Handler(func(topic string, payload []byte) {
		ev, err := report.DecodeEvent(payload)
		if err != nil {
			log.Printf("%s: bad event: %v", topic, err)
			return
		}
		at := time.Unix(0, ev.TimeUnixNano).Format("15:04:05.000")
		line := ev.Kind
		if ev.Seq != 0 {
			line += fmt.Sprintf(" seq=%d", ev.Seq)
		}
		if len(ev.Data) > 0 {
			line += fmt.Sprintf(" data='%s'", frame.Display(ev.Data))
		}
		if ev.Error != "" {
			line += " error=" + ev.Error
		}
		log.Printf("%s [%s %s] %s", at, ev.Node, ev.Role, line)
	}))
	<-(chan struct{})(nil)
}
