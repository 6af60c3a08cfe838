package publish

import (
	"context"
	"dph-tracker/internal/chrono"
	"dph-tracker/internal/telemetry"
	"dph-tracker/internal/tracker"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
)

const (
	report_kafka_write = "kafka.write"
)

type KafkaOptions struct {
	Brokers []string
	Topic   string
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// RecordMessage is the payload of every message, one per record of the new date.
type RecordMessage struct {
	Date        string `json:"date"`
	Section     string `json:"section"`
	RowName     string `json:"row_name"`
	Count       int    `json:"count"`
	CollectedAt string `json:"collected_at"`
}

// Kafka writes the records of the new date to a topic, keyed by
// "section/row_name" so every counter lands on the same partition.
type Kafka struct {
	writer messageWriter
	topic  string
	tel    telemetry.API
}

func NewKafka(opts KafkaOptions, tel telemetry.API) (Kafka, error) {
	if len(opts.Brokers) == 0 {
		return Kafka{}, fmt.Errorf("kafka: no brokers")
	}
	if opts.Topic == "" {
		return Kafka{}, fmt.Errorf("kafka: topic is not set")
	}

	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  opts.Brokers,
		Topic:    opts.Topic,
		Balancer: &kafka.Hash{},
	})
	return newKafka(writer, opts.Topic, tel), nil
}

func newKafka(writer messageWriter, topic string, tel telemetry.API) Kafka {
	return Kafka{
		writer: writer,
		topic:  topic,
		tel:    telemetry.NewScopedAPI("publish", tel),
	}
}

func (p Kafka) Name() string {
	return "kafka"
}

func (p Kafka) Publish(ctx context.Context, update tracker.Update) error {
	if len(update.Records) == 0 {
		return nil
	}

	collectedAt := chrono.FormatLog(update.CollectedAt)
	messages := make([]kafka.Message, 0, len(update.Records))
	for _, r := range update.Records {
		value, err := json.Marshal(RecordMessage{
			Date:        string(r.Date),
			Section:     r.Section,
			RowName:     r.RowName,
			Count:       r.Count,
			CollectedAt: collectedAt,
		})
		if err != nil {
			return err
		}
		messages = append(messages, kafka.Message{
			Key:   []byte(r.Section + "/" + r.RowName),
			Value: value,
		})
	}

	err := p.writer.WriteMessages(ctx, messages...)
	if err != nil {
		p.tel.ReportBroken(report_kafka_write, err, p.topic)
		return fmt.Errorf("write to %s: %w", p.topic, err)
	}
	p.tel.ReportCount(report_kafka_write, int64(len(messages)))
	return nil
}

func (p Kafka) Close() error {
	return p.writer.Close()
}
