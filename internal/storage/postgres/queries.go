package postgres

// SQL for the time-series log, command ledger, daily rollups and batch reads.

const (
	// queryInsertReading appends one telemetry sample. recorded_at is the
	// primary key, so a replayed message for an already-persisted timestamp
	// conflicts and inserts nothing. RowsAffected distinguishes the two.
	queryInsertReading = `
		INSERT INTO readings (
			recorded_at, temperature, humidity, target_temp, peltier_power, batch_id
		)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (recorded_at) DO NOTHING
	`

	// queryReadingExists backs the documented pre-insert existence check.
	// The unique key above remains the authoritative guard.
	queryReadingExists = `
		SELECT EXISTS (SELECT 1 FROM readings WHERE recorded_at = $1)
	`

	// queryAggregateRange computes the daily summary over [start, end).
	// avg_temp is left NULL for an empty range so the caller can tell
	// "no data" apart from a legitimate zero; the remaining aggregates are
	// coalesced so they always scan (humidity is a nullable column).
	queryAggregateRange = `
		SELECT
			avg(temperature),
			COALESCE(min(temperature), 0),
			COALESCE(max(temperature), 0),
			COALESCE(avg(humidity), 0),
			COALESCE(min(humidity), 0),
			COALESCE(max(humidity), 0),
			COALESCE(avg(peltier_power), 0)
		FROM readings
		WHERE recorded_at >= $1
		  AND recorded_at < $2
	`

	// queryInsertPendingCommand records the ledger row after the broker
	// acknowledged the publish. DO NOTHING keeps a late pending insert from
	// clobbering a terminal row written by an acknowledgement that raced
	// ahead of it.
	queryInsertPendingCommand = `
		INSERT INTO commands (cmd_id, type, requested_at, completed, value)
		VALUES ($1, $2, $3, FALSE, $4)
		ON CONFLICT (cmd_id) DO NOTHING
	`

	// queryAckSuccess upserts the success terminal state by command ID.
	queryAckSuccess = `
		INSERT INTO commands (cmd_id, type, requested_at, completed, value, completed_at)
		VALUES ($1, $2, $3, TRUE, $4, $5)
		ON CONFLICT (cmd_id) DO UPDATE SET
			completed    = TRUE,
			value        = EXCLUDED.value,
			completed_at = EXCLUDED.completed_at,
			error        = NULL,
			updated_at   = now()
	`

	// queryAckFailure upserts the failure terminal state by command ID.
	queryAckFailure = `
		INSERT INTO commands (cmd_id, type, requested_at, completed, value, error)
		VALUES ($1, $2, $3, FALSE, $4, $5)
		ON CONFLICT (cmd_id) DO UPDATE SET
			completed  = FALSE,
			error      = EXCLUDED.error,
			updated_at = now()
	`

	// queryUpsertRollup writes one summary row per calendar date, replacing
	// aggregate values on re-run so the job stays idempotent.
	queryUpsertRollup = `
		INSERT INTO daily_rollups (
			date, avg_temp, min_temp, max_temp,
			avg_humidity, min_humidity, max_humidity, avg_peltier_power
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (date) DO UPDATE SET
			avg_temp          = EXCLUDED.avg_temp,
			min_temp          = EXCLUDED.min_temp,
			max_temp          = EXCLUDED.max_temp,
			avg_humidity      = EXCLUDED.avg_humidity,
			min_humidity      = EXCLUDED.min_humidity,
			max_humidity      = EXCLUDED.max_humidity,
			avg_peltier_power = EXCLUDED.avg_peltier_power
	`

	// queryLatestRollupDate finds where startup gap recovery resumes from.
	queryLatestRollupDate = `
		SELECT to_char(date, 'YYYY-MM-DD')
		FROM daily_rollups
		ORDER BY date DESC
		LIMIT 1
	`

	queryListRollups = `
		SELECT
			to_char(date, 'YYYY-MM-DD'),
			avg_temp, min_temp, max_temp,
			avg_humidity, min_humidity, max_humidity, avg_peltier_power
		FROM daily_rollups
		ORDER BY date DESC
		LIMIT $1
	`

	queryGetBatch = `
		SELECT id, name, type,
			fermentation_start, fermentation_end,
			aging_start, aging_end
		FROM batches
		WHERE id = $1
	`
)
