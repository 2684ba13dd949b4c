package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/craft-brew/queue-ingest/internal/protocol"
	"github.com/craft-brew/queue-ingest/internal/storage"
)

// AckHandler reconciles command acknowledgements into the command ledger.
type AckHandler struct {
	commands storage.CommandStore
}

// NewAckHandler creates an acknowledgement handler.
func NewAckHandler(commands storage.CommandStore) *AckHandler {
	return &AckHandler{commands: commands}
}

// HandleAck processes one acknowledgement message. The ledger write is an
// upsert keyed by command ID, so an ack arriving before (or without) the
// pending row from the publish path still lands in a correct terminal state.
func (h *AckHandler) HandleAck(ctx context.Context, payload []byte) error {
	var ack protocol.AckPayload
	if err := json.Unmarshal(payload, &ack); err != nil {
		return fmt.Errorf("parse ack payload: %w", err)
	}
	if ack.ID == "" {
		return fmt.Errorf("ack payload missing command id")
	}

	value := formatAckValue(ack.Value)

	if ack.Success {
		slog.Info("[Ack] Command completed",
			"cmd_id", ack.ID, "cmd", ack.Cmd, "value", value)
	} else {
		slog.Warn("[Ack] Command failed",
			"cmd_id", ack.ID, "cmd", ack.Cmd, "error", ack.Error)
	}

	err := h.commands.ApplyAck(ctx, storage.AckUpdate{
		ID:      ack.ID,
		Type:    ack.Cmd,
		Ts:      time.Unix(ack.Ts, 0).UTC(),
		Value:   value,
		Success: ack.Success,
		Error:   ack.Error,
	})
	if err != nil {
		return fmt.Errorf("apply ack to ledger: %w", err)
	}
	return nil
}

// formatAckValue stringifies the dynamic ack value for the ledger column.
// Nil stays nil (SQL NULL).
func formatAckValue(value interface{}) *string {
	if value == nil {
		return nil
	}

	var s string
	switch v := value.(type) {
	case string:
		s = v
	case bool:
		s = strconv.FormatBool(v)
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	default:
		s = fmt.Sprintf("%v", v)
	}
	return &s
}
