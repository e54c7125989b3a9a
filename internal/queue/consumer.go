package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Consumer listens on the session.finished queue, appends one line per
// finished session to <LogDir>/settlements.log and calls OnFinished so
// cached statistics can be dropped.
type Consumer struct {
	URL        string
	LogDir     string
	OnFinished func(ctx context.Context, ev SessionFinishedEvent) error
}

// Run connects to RabbitMQ and consumes until ctx is cancelled.  Broker
// failures are retried with exponential backoff; a message that cannot
// be handled is rejected without requeue so it cannot spin.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			log.Printf("settlement-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("settlement-consumer: consume loop ended: %v; reconnecting", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("settlement-consumer: set QoS failed: %v", err)
	}

	if _, err := ch.QueueDeclare(SessionFinishedQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(SessionFinishedQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handle(ctx, d.Body); err != nil {
				log.Printf("settlement-consumer: handle message failed: %v", err)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, body []byte) error {
	var ev SessionFinishedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if err := c.appendLog(ev); err != nil {
		return err
	}
	if c.OnFinished != nil {
		if err := c.OnFinished(ctx, ev); err != nil {
			// the log line is written; a stale cache expires on its own
			log.Printf("settlement-consumer: session %d: post-finish hook: %v", ev.SessionID, err)
		}
	}
	return nil
}

func (c *Consumer) appendLog(ev SessionFinishedEvent) error {
	dir := c.LogDir
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, "settlements.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(formatLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

func formatLine(ev SessionFinishedEvent) string {
	players := make([]string, 0, len(ev.Players))
	for _, p := range ev.Players {
		players = append(players, fmt.Sprintf("%s:%s", p.Name, p.Profit().StringFixed(2)))
	}
	pays := make([]string, 0, len(ev.Settlements))
	for _, s := range ev.Settlements {
		pays = append(pays, fmt.Sprintf("%s->%s:%s", s.FromName, s.ToName, s.Amount.StringFixed(2)))
	}
	return fmt.Sprintf("[%s] Session finished | session_id=%d | name=%q | host_id=%d | chip_value=%s | policy=%s | players=[%s] | payments=[%s]\n",
		ev.FinishedAt, ev.SessionID, ev.SessionName, ev.HostID, ev.ChipValue.String(), ev.Policy,
		strings.Join(players, ","), strings.Join(pays, ","))
}
