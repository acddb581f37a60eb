package submission

import (
	"context"
	"fmt"
	"log"
	"time"

	"attendtrack/internal/attendance"
	"attendtrack/internal/metrics"
	"attendtrack/internal/queue"
)

// Submitter sends a payload to the submission service.
type Submitter interface {
	Submit(ctx context.Context, p Payload) error
}

// Forwarder turns session.submitted messages into submission calls. It reads
// sessions from the shared snapshot store rather than from the message.
type Forwarder struct {
	Store     attendance.SnapshotStore
	Key       string
	Submitter Submitter
	Location  *time.Location
}

// Handle processes one message. Messages of other types are ignored.
func (f *Forwarder) Handle(ctx context.Context, msg queue.Message) error {
	if msg.Type != queue.TypeSessionSubmitted {
		return nil
	}
	id := string(msg.Body)
	key := f.Key
	if key == "" {
		key = attendance.SnapshotKey
	}

	data, err := f.Store.Load(ctx, key)
	if err != nil {
		return fmt.Errorf("load snapshot for %s: %w", id, err)
	}
	m := attendance.NewManager()
	if err := m.Restore(data); err != nil {
		return err
	}
	sess, ok := m.Session(id)
	if !ok {
		return fmt.Errorf("session %s not in snapshot", id)
	}

	markedBy := m.TeacherName()
	if markedBy == "" {
		markedBy = "unknown"
	}
	p, err := BuildPayload(sess, m.SectionID(sess.Section), markedBy, f.Location)
	if err != nil {
		return err
	}
	err = f.Submitter.Submit(ctx, p)
	metrics.Forwarded.WithLabelValues(metrics.Result(err)).Inc()
	return err
}

// Run consumes q until ctx is done. Failures are logged and the message dropped.
func (f *Forwarder) Run(ctx context.Context, q queue.Queue) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return fmt.Errorf("queue consume init failed: %w", err)
	}
	for msg := range messages {
		if err := f.Handle(ctx, msg); err != nil {
			log.Printf("forward %s failed: %v", string(msg.Body), err)
			continue
		}
		log.Printf("forwarded %s", string(msg.Body))
	}
	return nil
}
