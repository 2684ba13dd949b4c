// Package commands implements the outbound command path: validate, publish
// with delivery acknowledgement, then record the pending ledger row.
package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/craft-brew/queue-ingest/internal/protocol"
	"github.com/craft-brew/queue-ingest/internal/storage"
	"github.com/google/uuid"
)

// publishTimeout bounds how long one publish attempt may wait for the broker.
const publishTimeout = 8 * time.Second

// ErrInvalidValue marks a command value that fails type validation.
// Nothing is published when this is returned.
var ErrInvalidValue = errors.New("invalid command value")

// Publisher is the broker publish operation the ledger depends on.
type Publisher interface {
	Publish(ctx context.Context, topic string, qos byte, payload []byte) error
}

// Ledger publishes commands to the fridge controller and tracks them in the
// durable command ledger.
type Ledger struct {
	publisher Publisher
	commands  storage.CommandStore

	nowFn func() time.Time
	idFn  func() string
}

// NewLedger creates a command ledger.
func NewLedger(publisher Publisher, commands storage.CommandStore) *Ledger {
	return &Ledger{
		publisher: publisher,
		commands:  commands,
		nowFn:     time.Now,
		idFn:      uuid.NewString,
	}
}

// Publish validates the value, publishes the command envelope (QoS 2, bounded
// by an 8s timeout), and inserts the pending ledger row only after the broker
// acknowledged the publish. On any publish failure no row is written; a retry
// generates a fresh ID, tracked independently.
func (l *Ledger) Publish(ctx context.Context, cmd protocol.Command, value interface{}) (string, error) {
	wireValue, err := protocol.ValidateCommandValue(cmd, value)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}

	id := l.idFn()
	now := l.nowFn()

	envelope := protocol.CommandPayload{
		QoS:   int(protocol.QoSCommand),
		ID:    id,
		Cmd:   cmd,
		Value: wireValue,
		Ts:    now.Unix(),
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return "", fmt.Errorf("marshal command envelope: %w", err)
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := l.publisher.Publish(publishCtx, protocol.TopicCommand, protocol.QoSCommand, payload); err != nil {
		return "", fmt.Errorf("publish command %s: %w", cmd, err)
	}

	slog.Info("[Ledger] Command published", "cmd_id", id, "cmd", cmd)

	err = l.commands.RecordPending(ctx, storage.CommandRecord{
		ID:          id,
		Type:        cmd,
		RequestedAt: now,
		Value:       ledgerValue(cmd, value),
	})
	if err != nil {
		// Published but not recorded: the acknowledgement upsert will still
		// create a correct terminal row for this ID.
		return id, fmt.Errorf("record pending command %s: %w", id, err)
	}

	return id, nil
}

// ledgerValue stringifies the caller's value for the ledger column, matching
// how the device echoes values back in acknowledgements.
func ledgerValue(cmd protocol.Command, value interface{}) *string {
	if cmd == protocol.CmdRestart || value == nil {
		return nil
	}

	var s string
	switch v := value.(type) {
	case bool:
		s = strconv.FormatBool(v)
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		s = strconv.FormatFloat(float64(v), 'f', -1, 64)
	case int:
		s = strconv.Itoa(v)
	case int64:
		s = strconv.FormatInt(v, 10)
	default:
		s = fmt.Sprintf("%v", v)
	}
	return &s
}
