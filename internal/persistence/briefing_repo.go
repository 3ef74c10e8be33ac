package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"meridian/internal/core"
)

const briefingsTable = "briefings"

var briefingColumns = []string{"id", "content", "article_ids", "feed_profile", "created_at"}

// sqlBriefingRepo implements BriefingRepository for Postgres and SQLite
type sqlBriefingRepo struct {
	db queryer
	sb sq.StatementBuilderType
}

func (r *sqlBriefingRepo) Save(ctx context.Context, content string, articleIDs []int64, profile core.FeedProfile) (int64, error) {
	if articleIDs == nil {
		articleIDs = []int64{}
	}
	idsJSON, err := json.Marshal(articleIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal article IDs: %w", err)
	}

	query, args, err := r.sb.Insert(briefingsTable).
		Columns(briefingColumns[1:]...).
		Values(content, string(idsJSON), string(profile), time.Now().UTC()).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert: %w", err)
	}

	var id int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to save briefing: %w", err)
	}
	return id, nil
}

func (r *sqlBriefingRepo) Get(ctx context.Context, id int64) (*core.Briefing, error) {
	briefings, err := r.selectBriefings(ctx, r.selectAll().Where(sq.Eq{"id": id}).Limit(1))
	if err != nil {
		return nil, err
	}
	if len(briefings) == 0 {
		return nil, fmt.Errorf("briefing %d: %w", id, ErrNotFound)
	}
	return &briefings[0], nil
}

func (r *sqlBriefingRepo) List(ctx context.Context, profile core.FeedProfile, limit, offset int) ([]core.Briefing, error) {
	b := r.selectAll()
	if profile != "" {
		b = b.Where(sq.Eq{"feed_profile": string(profile)})
	}
	b = b.OrderBy("created_at DESC", "id DESC")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	if offset > 0 {
		b = b.Offset(uint64(offset))
	}
	return r.selectBriefings(ctx, b)
}

func (r *sqlBriefingRepo) Latest(ctx context.Context, profile core.FeedProfile) (*core.Briefing, error) {
	briefings, err := r.List(ctx, profile, 1, 0)
	if err != nil {
		return nil, err
	}
	if len(briefings) == 0 {
		return nil, fmt.Errorf("latest briefing: %w", ErrNotFound)
	}
	return &briefings[0], nil
}

func (r *sqlBriefingRepo) selectAll() sq.SelectBuilder {
	return r.sb.Select(briefingColumns...).From(briefingsTable)
}

func (r *sqlBriefingRepo) selectBriefings(ctx context.Context, b sq.SelectBuilder) ([]core.Briefing, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query briefings: %w", err)
	}
	defer rows.Close()

	var briefings []core.Briefing
	for rows.Next() {
		var (
			briefing core.Briefing
			idsJSON  string
			profile  string
		)
		if err := rows.Scan(&briefing.ID, &briefing.Content, &idsJSON, &profile, &briefing.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan briefing: %w", err)
		}
		if err := json.Unmarshal([]byte(idsJSON), &briefing.ArticleIDs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal article IDs: %w", err)
		}
		briefing.FeedProfile = core.FeedProfile(profile)
		briefing.CreatedAt = briefing.CreatedAt.UTC()
		briefings = append(briefings, briefing)
	}
	return briefings, rows.Err()
}
