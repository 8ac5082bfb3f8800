package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"emotrack/internal/emotion"
	"emotrack/internal/services"
)

// Fixed-width timestamps keep created_at lexically sortable.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const recordColumns = "id, batch_id, user_id, media_type, source_type, channel, original_filename, original_path, snapshot_path, dominant_emotion, confidence, detections_json, created_at"

// SaveSession persists a finalized live session. It returns the stored
// records, or nil when the session produced nothing worth keeping.
func (s *Store) SaveSession(ctx context.Context, summary *emotion.SessionSummary) ([]Record, error) {
	records := SessionRecords(summary)
	if len(records) == 0 {
		return nil, nil
	}
	return s.SaveBatch(ctx, records)
}

// SaveBatch inserts all records and their label counts in one transaction.
// IDs and creation times are filled in on the returned copies.
func (s *Store) SaveBatch(ctx context.Context, records []Record) ([]Record, error) {
	ctx = ensureContext(ctx)
	if len(records) == 0 {
		return nil, nil
	}
	for i, rec := range records {
		if err := validateRecord(rec); err != nil {
			return nil, services.Wrap(services.ErrValidation, "results", "save batch", fmt.Sprintf("record %d", i), err)
		}
	}

	saved := make([]Record, len(records))
	err := retryOnBusy(ctx, func() error {
		copy(saved, records)
		return s.insertBatch(ctx, saved)
	})
	if err != nil {
		return nil, services.Wrap(services.ErrStorageFailure, "results", "save batch", "", err)
	}
	return saved, nil
}

func (s *Store) insertBatch(ctx context.Context, records []Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.now().UTC()
	for i := range records {
		rec := &records[i]
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
		rec.CreatedAt = rec.CreatedAt.UTC()
		detail, err := json.Marshal(rec.Detail)
		if err != nil {
			return fmt.Errorf("marshal detections: %w", err)
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO media_analyses (
                batch_id, user_id, media_type, source_type, channel, original_filename,
                original_path, snapshot_path, dominant_emotion, confidence, detections_json, created_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.BatchID,
			rec.UserID,
			rec.MediaType,
			rec.SourceType,
			channelOrDefault(rec.Channel),
			nullableString(rec.OriginalFilename),
			rec.OriginalPath,
			rec.SnapshotPath,
			string(rec.DominantEmotion),
			rec.Confidence,
			string(detail),
			rec.CreatedAt.Format(timeLayout),
		)
		if err != nil {
			return fmt.Errorf("insert analysis: %w", err)
		}
		if rec.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		for _, label := range rec.Counts.Labels() {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO media_emotion_counts (analysis_id, emotion_label, count) VALUES (?, ?, ?)`,
				rec.ID, string(label), rec.Counts.Get(label),
			); err != nil {
				return fmt.Errorf("insert emotion count: %w", err)
			}
		}
	}
	return tx.Commit()
}

func validateRecord(rec Record) error {
	switch {
	case strings.TrimSpace(rec.MediaType) == "":
		return errors.New("media_type is required")
	case strings.TrimSpace(rec.SourceType) == "":
		return errors.New("source_type is required")
	case strings.TrimSpace(rec.OriginalPath) == "":
		return errors.New("original_path is required")
	case strings.TrimSpace(rec.SnapshotPath) == "":
		return errors.New("snapshot_path is required")
	case strings.TrimSpace(string(rec.DominantEmotion)) == "":
		return errors.New("dominant_emotion is required")
	}
	return nil
}

// Get fetches a record by id. A missing record returns nil without error.
func (s *Store) Get(ctx context.Context, id int64) (*Record, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM media_analyses WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis: %w", err)
	}
	records := []Record{*rec}
	if err := s.attachCounts(ctx, records); err != nil {
		return nil, err
	}
	return &records[0], nil
}

// List returns records matching filter, newest first.
func (s *Store) List(ctx context.Context, filter Filter) ([]Record, error) {
	ctx = ensureContext(ctx)
	where, args := filterClause(filter)
	query := `SELECT ` + recordColumns + ` FROM media_analyses` + where +
		` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, filter.PageSize())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if err := s.attachCounts(ctx, records); err != nil {
		return nil, err
	}
	return records, nil
}

// Delete removes a record and its counts. It reports whether a row existed.
func (s *Store) Delete(ctx context.Context, id int64) (bool, error) {
	ctx = ensureContext(ctx)
	var affected int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM media_analyses WHERE id = ?`, id)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return false, services.Wrap(services.ErrStorageFailure, "results", "delete", "", err)
	}
	return affected > 0, nil
}

// Stats aggregates label counts and analyses per source for filter. Limit is
// ignored.
func (s *Store) Stats(ctx context.Context, filter Filter) (Stats, error) {
	ctx = ensureContext(ctx)
	stats := Stats{ByLabel: map[string]int{}, BySource: map[string]int{}}
	where, args := filterClause(filter)

	rows, err := s.db.QueryContext(ctx,
		`SELECT source_type, COUNT(1) FROM media_analyses`+where+` GROUP BY source_type`, args...)
	if err != nil {
		return Stats{}, fmt.Errorf("stats by source: %w", err)
	}
	for rows.Next() {
		var (
			source string
			n      int
		)
		if err := rows.Scan(&source, &n); err != nil {
			rows.Close()
			return Stats{}, fmt.Errorf("scan source stats: %w", err)
		}
		stats.BySource[source] = n
		stats.Analyses += n
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx,
		`SELECT c.emotion_label, SUM(c.count) FROM media_emotion_counts c
         JOIN media_analyses ON media_analyses.id = c.analysis_id`+where+`
         GROUP BY c.emotion_label`, args...)
	if err != nil {
		return Stats{}, fmt.Errorf("stats by label: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			label string
			n     int
		)
		if err := rows.Scan(&label, &n); err != nil {
			return Stats{}, fmt.Errorf("scan label stats: %w", err)
		}
		stats.ByLabel[label] = n
	}
	return stats, rows.Err()
}

// HasPath reports whether any record references rel as its original or
// snapshot path.
func (s *Store) HasPath(ctx context.Context, rel string) (bool, error) {
	ctx = ensureContext(ctx)
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM media_analyses WHERE snapshot_path = ? OR original_path = ?`, rel, rel,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("lookup path: %w", err)
	}
	return n > 0, nil
}

func filterClause(filter Filter) (string, []any) {
	col := func(name string) string { return "media_analyses." + name }
	var (
		clauses []string
		args    []any
	)
	if filter.UserID != nil {
		clauses = append(clauses, col("user_id")+" = ?")
		args = append(args, *filter.UserID)
	}
	if mediaType := strings.ToLower(strings.TrimSpace(filter.MediaType)); mediaType != "" && mediaType != "all" {
		clauses = append(clauses, col("media_type")+" = ?")
		args = append(args, mediaType)
	}
	if aliases := SourceAliases(filter.Source); len(aliases) > 0 {
		clauses = append(clauses, col("source_type")+" IN ("+makePlaceholders(len(aliases))+")")
		for _, alias := range aliases {
			args = append(args, alias)
		}
	}
	if label := strings.TrimSpace(filter.Emotion); label != "" {
		clauses = append(clauses, col("dominant_emotion")+" = ? COLLATE NOCASE")
		args = append(args, label)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (s *Store) attachCounts(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	index := make(map[int64]int, len(records))
	args := make([]any, len(records))
	for i, rec := range records {
		index[rec.ID] = i
		args[i] = rec.ID
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT analysis_id, emotion_label, count FROM media_emotion_counts
         WHERE analysis_id IN (`+makePlaceholders(len(records))+`) ORDER BY analysis_id, emotion_label`, args...)
	if err != nil {
		return fmt.Errorf("load emotion counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id    int64
			label string
			n     int
		)
		if err := rows.Scan(&id, &label, &n); err != nil {
			return fmt.Errorf("scan emotion count: %w", err)
		}
		if i, ok := index[id]; ok {
			records[i].Counts.Add(emotion.Label(label), n)
		}
	}
	return rows.Err()
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*Record, error) {
	var (
		rec        Record
		filename   sql.NullString
		label      string
		detailJSON string
		createdRaw string
	)
	if err := scanner.Scan(
		&rec.ID,
		&rec.BatchID,
		&rec.UserID,
		&rec.MediaType,
		&rec.SourceType,
		&rec.Channel,
		&filename,
		&rec.OriginalPath,
		&rec.SnapshotPath,
		&label,
		&rec.Confidence,
		&detailJSON,
		&createdRaw,
	); err != nil {
		return nil, err
	}
	rec.OriginalFilename = filename.String
	rec.DominantEmotion = emotion.Label(label)
	if detailJSON != "" {
		if err := json.Unmarshal([]byte(detailJSON), &rec.Detail); err != nil {
			return nil, fmt.Errorf("decode detections: %w", err)
		}
	}
	if created, err := time.Parse(timeLayout, createdRaw); err == nil {
		rec.CreatedAt = created
	}
	return &rec, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}
