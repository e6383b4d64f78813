package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"

	"github.com/gometeo/widget/internal/model"
)

type Saver interface {
	Save(ctx context.Context, rec model.WeatherRecord, at time.Time) error
}

// ConsumerHandler сохраняет события из Kafka в хранилище
type ConsumerHandler struct {
	logger *slog.Logger
	store  Saver
}

func NewConsumerHandler(store Saver, logger *slog.Logger) *ConsumerHandler {
	return &ConsumerHandler{logger: logger, store: store}
}

func (h *ConsumerHandler) Setup(_ sarama.ConsumerGroupSession) error   { return nil }
func (h *ConsumerHandler) Cleanup(_ sarama.ConsumerGroupSession) error { return nil }

func (h *ConsumerHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		var event model.LookupEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			h.logger.Error("Битый JSON", "offset", msg.Offset, "error", err)
			// Битое сообщение не прочитать и позже
			sess.MarkMessage(msg, "")
			continue
		}

		// Если БД недоступна, сообщение не помечаем, Kafka отдаст его снова
		if err := h.store.Save(sess.Context(), event.Record, event.Timestamp); err != nil {
			h.logger.Error("Ошибка записи в БД", "city", event.Record.City, "error", err)
			continue
		}

		h.logger.Info("Данные сохранены в БД",
			"id", event.ID,
			"city", event.Record.City,
			"temp", event.Record.Temperature)

		sess.MarkMessage(msg, "")
	}
	return nil
}
