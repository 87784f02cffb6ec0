// Package events forwards posted transfers to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"

	"bankmesh.org/internal/obs"
	"bankmesh.org/internal/stream"
)

const DefaultTopic = "bankmesh.transfers"

// NewProducer dials brokers with full acknowledgement and a few retries.
func NewProducer(brokers []string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.ClientID = "bankmesh"
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = true
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1
	cfg.Version = sarama.V2_8_0_0

	p, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return p, nil
}

type Forwarder struct {
	producer sarama.SyncProducer
	topic    string
	log      *logrus.Entry
}

func NewForwarder(p sarama.SyncProducer, topic string) *Forwarder {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Forwarder{producer: p, topic: topic, log: obs.Component("events")}
}

// Send publishes ev keyed by its source endpoint, so entries drawn from one
// account stay ordered within a partition.
func (f *Forwarder) Send(ev stream.TransferEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: f.topic,
		Key:   sarama.StringEncoder(ev.From.String()),
		Value: sarama.ByteEncoder(body),
		Headers: []sarama.RecordHeader{
			{Key: []byte("kind"), Value: []byte(ev.Kind)},
			{Key: []byte("id"), Value: []byte(ev.ID)},
		},
	}
	_, _, err = f.producer.SendMessage(msg)
	return err
}

// Run forwards events until the channel closes. Failed sends are logged
// and counted; the stream is not replayed.
func (f *Forwarder) Run(ctx context.Context, events <-chan stream.TransferEvent) {
	f.log.WithField("topic", f.topic).Info("event forwarder started")
	for ev := range events {
		err := f.Send(ev)
		obs.EventForwarded(err)
		if err != nil {
			f.log.WithError(err).WithFields(logrus.Fields{
				"sequence": ev.Sequence,
				"kind":     ev.Kind,
			}).Error("forward transfer event failed")
		}
	}
	f.log.Info("event forwarder stopped")
}

func (f *Forwarder) Close() error { return f.producer.Close() }
