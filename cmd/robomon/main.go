package main

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/robotalks/robocore/pkg/telemetry"
	"github.com/robotalks/robocore/pkg/telemetry/mqtt"
	"github.com/robotalks/robocore/pkg/telemetry/stream"
	"github.com/robotalks/robocore/pkg/telemetry/websocket"
)

var (
	mqttURL = "mqtt://localhost:1883/robo/"
	udpAddr string
	wsURL   string
)

func init() {
	if val := os.Getenv("ROBO_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
	flag.StringVar(&udpAddr, "udp", udpAddr, "Listen for telemetry datagrams on address instead of MQTT.")
	flag.StringVar(&wsURL, "ws", wsURL, "Read telemetry from websocket URL instead of MQTT.")
}

type packetReader interface {
	ReadPacket() ([]byte, error)
}

func printSnapshot(source string, payload []byte) {
	s, err := telemetry.DecodeSnapshot(payload)
	if err != nil {
		log.Printf("%s: bad snapshot: %v", source, err)
		return
	}
	log.Printf("%s: %s", source, s.String())
}

func readAll(source string, r packetReader) {
	for {
		pkt, err := r.ReadPacket()
		if err != nil {
			log.Fatalln(err)
		}
		printSnapshot(source, pkt)
	}
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	switch {
	case udpAddr != "":
		rw, err := stream.ListenUDP(udpAddr)
		if err != nil {
			log.Fatalln(err)
		}
		readAll(udpAddr, rw)
	case wsURL != "":
		conn, err := websocket.Dial(wsURL, "http://localhost/")
		if err != nil {
			log.Fatalln(err)
		}
		readAll(wsURL, conn)
	}

	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	q.Sub("+"+mqtt.TelemetrySuffix, mqtt.Handler(printSnapshot))
	if err := q.Connect(10 * time.Second); err != nil {
		log.Fatalln(err)
	}
	<-(chan struct{})(nil)
}
