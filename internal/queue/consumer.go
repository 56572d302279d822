package queue

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	amqp "github.com/rabbitmq/amqp091-go"
)

var logger = loggo.GetLogger("flightseats.queue")

// SeatLogPath is where the consumer appends one line per event.
var SeatLogPath = filepath.Join("logs", "seating.log")

// StartSeatEventConsumer connects to RabbitMQ, declares the seat events
// queue (durable) and consumes it, appending each event to SeatLogPath. It
// reconnects with exponential backoff and runs until stop is closed.
func StartSeatEventConsumer(url string, stop <-chan struct{}) {
	backoff := time.Second
	for {
		select {
		case <-stop:
			return
		default:
		}
		conn, err := amqp.Dial(url)
		if err != nil {
			logger.Warningf("seat-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			select {
			case <-stop:
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = consumeLoop(conn, stop)
		_ = conn.Close()
		if err == nil {
			return
		}
		logger.Warningf("seat-consumer: consume loop ended: %v; reconnecting", err)
		select {
		case <-stop:
			return
		case <-time.After(2 * time.Second):
		}
	}
}

// consumeLoop returns nil when stop is closed and an error when the broker
// goes away.
func consumeLoop(conn *amqp.Connection, stop <-chan struct{}) error {
	ch, err := conn.Channel()
	if err != nil {
		return errors.Annotate(err, "channel open")
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		logger.Warningf("seat-consumer: set QoS failed: %v", err)
	}

	if _, err := ch.QueueDeclare(SeatEventsQueue, true, false, false, false, nil); err != nil {
		return errors.Annotate(err, "queue declare")
	}

	msgs, err := ch.Consume(SeatEventsQueue, "", false, false, false, false, nil)
	if err != nil {
		return errors.Annotate(err, "queue consume")
	}

	for {
		select {
		case <-stop:
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := HandleMessage(d.Body); err != nil {
				logger.Errorf("seat-consumer: handle message failed: %v", err)
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// HandleMessage decodes one event body and appends it to SeatLogPath.
func HandleMessage(body []byte) error {
	var ev SeatEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return errors.Annotate(err, "unmarshal")
	}
	if ev.Type == "" || ev.Flight == "" || ev.Seat == "" {
		return errors.NotValidf("incomplete event %q", body)
	}
	if err := os.MkdirAll(filepath.Dir(SeatLogPath), 0o755); err != nil {
		return errors.Annotate(err, "mkdir logs")
	}
	f, err := os.OpenFile(SeatLogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Annotate(err, "open log file")
	}
	defer f.Close()

	if _, err := f.WriteString(FormatEvent(ev)); err != nil {
		return errors.Annotate(err, "write log")
	}
	return nil
}

// FormatEvent renders ev as a single log line.
func FormatEvent(ev SeatEvent) string {
	return fmt.Sprintf("[%s] %s | flight=%q | seat=%s | occupant=%q\n",
		ev.OccurredAt, ev.Type, ev.Flight, ev.Seat, ev.Occupant)
}
