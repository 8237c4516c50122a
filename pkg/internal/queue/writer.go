package queue

import (
	"context"
	"strings"
	"time"

	k "github.com/segmentio/kafka-go"
	"github.com/spf13/viper"
)

type Writer struct {
	w *k.Writer
}

func NewWriter(brokers []string, topic string) *Writer {
	w := &k.Writer{
		Addr:         k.TCP(brokers...),
		Topic:        topic,
		Balancer:     &k.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: k.RequireOne,
		Async:        true,
	}
	return &Writer{w: w}
}

func (w *Writer) Close() error { return w.w.Close() }

func (w *Writer) Publish(ctx context.Context, key string, value []byte) error {
	return w.w.WriteMessages(ctx, k.Message{
		Key:   []byte(key),
		Value: value,
		Time:  time.Now(),
	})
}

// W is nil when the queue is disabled, publishers must check it.
var W *Writer

func NewQueue() {
	if !viper.GetBool("queue.enabled") {
		return
	}
	brokers := strings.Split(viper.GetString("queue.brokers"), ",")
	W = NewWriter(brokers, viper.GetString("queue.topic"))
}
