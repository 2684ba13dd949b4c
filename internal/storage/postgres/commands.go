package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/craft-brew/queue-ingest/internal/storage"
)

// CommandAdapter implements storage.CommandStore, sharing the main adapter's
// connection.
type CommandAdapter struct {
	db *sql.DB
}

// NewCommandAdapter creates a command ledger adapter on the given connection.
func NewCommandAdapter(db *sql.DB) *CommandAdapter {
	return &CommandAdapter{db: db}
}

// RecordPending inserts the pending ledger row for a freshly published
// command. If an acknowledgement for the same ID already landed (upsert raced
// ahead), the insert is a no-op and the terminal row stands.
func (a *CommandAdapter) RecordPending(ctx context.Context, cmd storage.CommandRecord) error {
	_, err := a.db.ExecContext(ctx, queryInsertPendingCommand,
		cmd.ID,
		string(cmd.Type),
		cmd.RequestedAt,
		nullString(cmd.Value),
	)
	if err != nil {
		return fmt.Errorf("failed to record pending command: %w", err)
	}

	slog.Debug("[Postgres] Recorded pending command", "cmd_id", cmd.ID, "type", cmd.Type)
	return nil
}

// ApplyAck upserts the terminal command state keyed by command ID. Works
// whether or not the pending row exists.
func (a *CommandAdapter) ApplyAck(ctx context.Context, ack storage.AckUpdate) error {
	if ack.Success {
		_, err := a.db.ExecContext(ctx, queryAckSuccess,
			ack.ID,
			string(ack.Type),
			ack.Ts,
			nullString(ack.Value),
			ack.Ts,
		)
		if err != nil {
			return fmt.Errorf("failed to apply success ack: %w", err)
		}
		return nil
	}

	_, err := a.db.ExecContext(ctx, queryAckFailure,
		ack.ID,
		string(ack.Type),
		ack.Ts,
		nullString(ack.Value),
		nullString(ack.Error),
	)
	if err != nil {
		return fmt.Errorf("failed to apply failure ack: %w", err)
	}
	return nil
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}
