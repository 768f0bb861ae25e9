package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/j-veylop/glm-usage-tui/internal/logger"
	"github.com/j-veylop/glm-usage-tui/internal/models"
)

// InsertUsageRecords stores one observation per limit in a single transaction.
func (db *DB) InsertUsageRecords(records []models.UsageRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(context.Background(), `
		INSERT INTO usage_snapshots (
			timestamp, kind, percentage, current_value, usage_total, remaining
		) VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range records {
		ts := r.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		if _, err := stmt.ExecContext(context.Background(),
			formatTime(ts),
			r.Kind.String(),
			r.Percentage,
			r.CurrentValue,
			r.UsageTotal,
			r.Remaining,
		); err != nil {
			return fmt.Errorf("failed to insert usage snapshot: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit usage snapshots: %w", err)
	}
	return nil
}

// InsertRefreshEvent logs a fetch attempt.
func (db *DB) InsertRefreshEvent(event *models.RefreshEvent) error {
	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	result, err := db.ExecContext(context.Background(), `
		INSERT INTO refresh_events (timestamp, source, success, error)
		VALUES (?, ?, ?, ?)
	`,
		formatTime(ts),
		string(event.Source),
		boolToInt(event.Success),
		nullString(event.Error),
	)
	if err != nil {
		return fmt.Errorf("failed to insert refresh event: %w", err)
	}

	id, err := result.LastInsertId()
	if err == nil {
		event.ID = id
	}

	return nil
}

// GetRecentRefreshEvents returns the most recent fetch attempts, newest first.
func (db *DB) GetRecentRefreshEvents(limit int) ([]models.RefreshEvent, error) {
	rows, err := db.QueryContext(context.Background(), `
		SELECT id, timestamp, source, success, error
		FROM refresh_events
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query refresh events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []models.RefreshEvent
	for rows.Next() {
		var (
			ev      models.RefreshEvent
			source  string
			success int
			errStr  sql.NullString
		)
		if err := rows.Scan(&ev.ID, &ev.Timestamp, &source, &success, &errStr); err != nil {
			return nil, fmt.Errorf("failed to scan refresh event: %w", err)
		}
		ev.Source = models.RefreshSource(source)
		ev.Success = success != 0
		ev.Error = errStr.String
		events = append(events, ev)
	}

	return events, rows.Err()
}

// GetTokenPercentages returns the TOKENS percentage series recorded since
// since, oldest first, keeping at most limit most recent points.
func (db *DB) GetTokenPercentages(since time.Time, limit int) ([]float64, error) {
	rows, err := db.QueryContext(context.Background(), `
		SELECT percentage FROM (
			SELECT id, timestamp, percentage
			FROM usage_snapshots
			WHERE kind = ? AND timestamp >= ?
			ORDER BY timestamp DESC, id DESC
			LIMIT ?
		) ORDER BY timestamp ASC, id ASC
	`, models.LimitTokens.String(), formatTime(since), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query token history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var series []float64
	for rows.Next() {
		var pct float64
		if err := rows.Scan(&pct); err != nil {
			return nil, fmt.Errorf("failed to scan token history: %w", err)
		}
		series = append(series, pct)
	}

	return series, rows.Err()
}

// GetHistoryStats summarizes the recorded history within tr.
func (db *DB) GetHistoryStats(tr models.TimeRange, now time.Time, maxPoints int) (*models.HistoryStats, error) {
	since := tr.Since(now)
	stats := &models.HistoryStats{TimeRange: tr}

	series, err := db.GetTokenPercentages(since, maxPoints)
	if err != nil {
		return nil, err
	}
	stats.TokenPercentages = series

	var (
		first, last sql.NullString
		peak        sql.NullFloat64
	)
	err = db.QueryRowContext(context.Background(), `
		SELECT MIN(timestamp), MAX(timestamp), MAX(percentage)
		FROM usage_snapshots
		WHERE kind = ? AND timestamp >= ?
	`, models.LimitTokens.String(), formatTime(since)).Scan(&first, &last, &peak)
	if err != nil {
		return nil, fmt.Errorf("failed to query history bounds: %w", err)
	}
	stats.FirstDataPoint = parseTime(first)
	stats.LastDataPoint = parseTime(last)
	stats.PeakPercentage = peak.Float64

	err = db.QueryRowContext(context.Background(), `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END), 0)
		FROM refresh_events
		WHERE timestamp >= ?
	`, formatTime(since)).Scan(&stats.Refreshes, &stats.Failures)
	if err != nil {
		return nil, fmt.Errorf("failed to query refresh counts: %w", err)
	}

	return stats, nil
}

// PruneBefore deletes history older than cutoff and returns the number of rows removed.
func (db *DB) PruneBefore(cutoff time.Time) (int64, error) {
	var total int64
	for _, table := range []string{"usage_snapshots", "refresh_events"} {
		result, err := db.ExecContext(context.Background(),
			"DELETE FROM "+table+" WHERE timestamp < ?", formatTime(cutoff))
		if err != nil {
			return total, fmt.Errorf("failed to prune %s: %w", table, err)
		}
		if n, err := result.RowsAffected(); err == nil {
			total += n
		}
	}
	return total, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime parses an aggregate timestamp column; MIN/MAX results lose the
// column type and come back as text.
func parseTime(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	for _, layout := range []string{timeLayout, time.RFC3339Nano, "2006-01-02 15:04:05 -0700 MST"} {
		if t, err := time.Parse(layout, s.String); err == nil {
			return t
		}
	}
	logger.Warn("unparseable timestamp", "value", s.String)
	return time.Time{}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
