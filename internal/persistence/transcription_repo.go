package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"meridian/internal/core"
)

const transcriptionsTable = "youtube_transcriptions"

var transcriptionColumns = []string{
	"id", "channel_id", "channel_name", "video_title", "posted_at", "video_url",
	"processed_at", "transcription_text", "transcription_summary",
}

// sqlTranscriptionRepo implements TranscriptionRepository for Postgres and SQLite
type sqlTranscriptionRepo struct {
	db queryer
	sb sq.StatementBuilderType
}

func (r *sqlTranscriptionRepo) Create(ctx context.Context, t *core.Transcription) error {
	if t.ProcessedAt.IsZero() {
		t.ProcessedAt = time.Now().UTC()
	}

	var posted interface{}
	if t.PostedAt != nil {
		posted = t.PostedAt.UTC()
	}

	query, args, err := r.sb.Insert(transcriptionsTable).
		Columns(transcriptionColumns[1:]...).
		Values(
			t.ChannelID, t.ChannelName, t.VideoTitle, posted, t.VideoURL,
			t.ProcessedAt.UTC(), t.Text, t.Summary,
		).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&t.ID); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("transcription %s: %w", t.VideoURL, ErrDuplicate)
		}
		return fmt.Errorf("failed to insert transcription: %w", err)
	}
	return nil
}

func (r *sqlTranscriptionRepo) Exists(ctx context.Context, videoURL string) (bool, error) {
	query, args, err := r.sb.Select("id").From(transcriptionsTable).Where(sq.Eq{"video_url": videoURL}).Limit(1).ToSql()
	if err != nil {
		return false, fmt.Errorf("build select: %w", err)
	}

	var id int64
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check transcription: %w", err)
	}
	return true, nil
}

func (r *sqlTranscriptionRepo) Get(ctx context.Context, id int64) (*core.Transcription, error) {
	found, err := r.selectTranscriptions(ctx, r.selectAll().Where(sq.Eq{"id": id}).Limit(1))
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("transcription %d: %w", id, ErrNotFound)
	}
	return &found[0], nil
}

func (r *sqlTranscriptionRepo) List(ctx context.Context, filter TranscriptionFilter) ([]core.Transcription, error) {
	b := applyTranscriptionFilter(r.selectAll(), filter)

	column := SortPostedAt
	switch filter.SortBy {
	case SortVideoTitle, SortProcessedAt, SortChannelName:
		column = filter.SortBy
	}
	direction := "DESC"
	if filter.Ascending {
		direction = "ASC"
	}
	b = b.OrderBy(fmt.Sprintf("%s %s", column, direction), "id "+direction)

	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	b = b.Limit(uint64(perPage)).Offset(uint64((page - 1) * perPage))

	return r.selectTranscriptions(ctx, b)
}

func (r *sqlTranscriptionRepo) Count(ctx context.Context, filter TranscriptionFilter) (int, error) {
	query, args, err := applyTranscriptionFilter(r.sb.Select("COUNT(*)").From(transcriptionsTable), filter).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count transcriptions: %w", err)
	}
	return count, nil
}

func (r *sqlTranscriptionRepo) DistinctChannels(ctx context.Context) ([]core.Channel, error) {
	query, args, err := r.sb.Select("channel_id", "channel_name").Distinct().From(transcriptionsTable).
		OrderBy("channel_name", "channel_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	defer rows.Close()

	channels := []core.Channel{}
	for rows.Next() {
		var c core.Channel
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		channels = append(channels, c)
	}
	return channels, rows.Err()
}

func applyTranscriptionFilter(b sq.SelectBuilder, filter TranscriptionFilter) sq.SelectBuilder {
	if filter.ChannelID != "" {
		b = b.Where(sq.Eq{"channel_id": filter.ChannelID})
	}
	if filter.ChannelName != "" {
		b = b.Where(sq.Eq{"channel_name": filter.ChannelName})
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		pattern := "%" + strings.ToLower(term) + "%"
		b = b.Where(sq.Or{
			sq.Like{"LOWER(video_title)": pattern},
			sq.Like{"LOWER(transcription_text)": pattern},
			sq.Like{"LOWER(transcription_summary)": pattern},
		})
	}
	if filter.StartDate != nil {
		b = b.Where(sq.GtOrEq{"posted_at": startOfDay(*filter.StartDate)})
	}
	if filter.EndDate != nil {
		b = b.Where(sq.Lt{"posted_at": startOfDay(*filter.EndDate).AddDate(0, 0, 1)})
	}
	return b
}

func (r *sqlTranscriptionRepo) selectAll() sq.SelectBuilder {
	return r.sb.Select(transcriptionColumns...).From(transcriptionsTable)
}

func (r *sqlTranscriptionRepo) selectTranscriptions(ctx context.Context, b sq.SelectBuilder) ([]core.Transcription, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transcriptions: %w", err)
	}
	defer rows.Close()

	var result []core.Transcription
	for rows.Next() {
		var (
			t       core.Transcription
			posted  sql.NullTime
			summary sql.NullString
		)
		if err := rows.Scan(
			&t.ID, &t.ChannelID, &t.ChannelName, &t.VideoTitle, &posted, &t.VideoURL,
			&t.ProcessedAt, &t.Text, &summary,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transcription: %w", err)
		}
		if posted.Valid {
			at := posted.Time.UTC()
			t.PostedAt = &at
		}
		if summary.Valid {
			t.Summary = &summary.String
		}
		t.ProcessedAt = t.ProcessedAt.UTC()
		result = append(result, t)
	}
	return result, rows.Err()
}

// isUniqueViolation recognizes unique constraint failures from either driver.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
