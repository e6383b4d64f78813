package events

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"
	"github.com/oklog/ulid/v2"

	"github.com/gometeo/widget/internal/model"
)

// Publisher отправляет события о показанной погоде в Kafka
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
	source   string
	logger   *slog.Logger
	now      func() time.Time
}

func NewPublisher(brokers []string, topic, source string, logger *slog.Logger) (*Publisher, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	// Ждем подтверждения от всех реплик
	config.Producer.RequiredAcks = sarama.WaitForAll

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к Kafka: %w", err)
	}
	return NewPublisherWithProducer(producer, topic, source, logger), nil
}

func NewPublisherWithProducer(producer sarama.SyncProducer, topic, source string, logger *slog.Logger) *Publisher {
	return &Publisher{
		producer: producer,
		topic:    topic,
		source:   source,
		logger:   logger,
		now:      time.Now,
	}
}

func (p *Publisher) Publish(ctx context.Context, query string, rec model.WeatherRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	event := model.LookupEvent{
		ID:        ulid.Make().String(),
		Query:     query,
		Record:    rec,
		Source:    p.source,
		Timestamp: p.now().UTC(),
	}
	bytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("ошибка JSON: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(strings.ToLower(rec.City)),
		Value: sarama.ByteEncoder(bytes),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("не удалось отправить сообщение: %w", err)
	}

	p.logger.Debug("Событие отправлено",
		"id", event.ID,
		"city", rec.City,
		"partition", partition,
		"offset", offset)
	return nil
}

func (p *Publisher) Close() error {
	return p.producer.Close()
}
