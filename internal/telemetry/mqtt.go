// Package telemetry publishes sample batches over MQTT. Each sensor gets
// its own Stream bound to one topic; batches go out as JSON.
package telemetry

import (
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"imud/internal/imu"
)

// publisher is the slice of mqtt.Client a Stream needs; tests substitute a
// fake.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Publisher owns the broker connection and hands out per-topic streams.
type Publisher struct {
	client mqtt.Client
}

func Connect(broker, clientID string) (*Publisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("telemetry: mqtt connect %s: %w", broker, token.Error())
	}
	return &Publisher{client: client}, nil
}

func (p *Publisher) Close() {
	if p == nil || p.client == nil {
		return
	}
	p.client.Disconnect(250)
}

// Stream returns an imu.Stream publishing to topic.
func (p *Publisher) Stream(topic string) *Stream {
	return &Stream{client: p.client, topic: topic}
}

// Stream is one sensor's MQTT sink. Publish/Set* are called only from the
// acquisition worker; counters are atomic so Status can be read elsewhere.
type Stream struct {
	client publisher
	topic  string

	published  atomic.Uint64
	errorCount atomic.Uint64
	dropped    atomic.Uint64

	// Worker-owned compensation/config state echoed into payloads.
	temperature float64
	rate        float64
	scale       float64
	fullRange   float64
}

type batchPayload struct {
	TimestampUs int64   `json:"timestamp_us"`
	DTUs        int64   `json:"dt_us"`
	X           []int16 `json:"x"`
	Y           []int16 `json:"y"`
	Z           []int16 `json:"z"`
	Samples     int     `json:"samples"`
	Temperature float64 `json:"temperature_c"`
	Scale       float64 `json:"scale"`
	Range       float64 `json:"range"`
	RateHz      float64 `json:"rate_hz"`
	ErrorCount  uint64  `json:"error_count"`
}

func (s *Stream) Publish(b imu.Batch) {
	data, err := json.Marshal(batchPayload{
		TimestampUs: b.Timestamp.UnixMicro(),
		DTUs:        b.DT.Microseconds(),
		X:           b.X,
		Y:           b.Y,
		Z:           b.Z,
		Samples:     b.Samples,
		Temperature: s.temperature,
		Scale:       s.scale,
		Range:       s.fullRange,
		RateHz:      s.rate,
		ErrorCount:  s.errorCount.Load(),
	})
	if err != nil {
		s.dropped.Add(1)
		log.Printf("telemetry: marshal %s batch: %v", s.topic, err)
		return
	}

	// Fire and forget: the acquisition worker must not block on the broker.
	s.client.Publish(s.topic, 0, false, data)
	s.published.Add(1)
}

func (s *Stream) ReportError() { s.errorCount.Add(1) }

func (s *Stream) SetTemperature(degC float64) { s.temperature = degC }

func (s *Stream) SetRate(hz float64) { s.rate = hz }

func (s *Stream) SetScale(scale, fullRange float64) {
	s.scale = scale
	s.fullRange = fullRange
}

func (s *Stream) Status() string {
	return fmt.Sprintf("%s: published %d, errors %d, dropped %d",
		s.topic, s.published.Load(), s.errorCount.Load(), s.dropped.Load())
}
