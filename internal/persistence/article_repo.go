package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"meridian/internal/core"
)

const articlesTable = "articles"

var articleColumns = []string{
	"id", "url", "title", "published_date", "feed_source", "raw_content",
	"processed_content", "embedding", "impact_rating", "feed_profile",
	"image_url", "categories", "created_at",
}

// queryer is satisfied by both *sql.DB and *sql.Tx
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// sqlArticleRepo implements ArticleRepository for Postgres and SQLite
type sqlArticleRepo struct {
	db queryer
	sb sq.StatementBuilderType
}

func (r *sqlArticleRepo) Create(ctx context.Context, article *core.Article) error {
	if article.CreatedAt.IsZero() {
		article.CreatedAt = time.Now().UTC()
	}

	embedding, err := encodeEmbedding(article.Embedding)
	if err != nil {
		return err
	}
	categories, err := encodeCategories(article.Categories)
	if err != nil {
		return err
	}

	query, args, err := r.sb.Insert(articlesTable).
		Columns(articleColumns[1:]...).
		Values(
			article.URL, article.Title, article.PublishedDate.UTC(), article.FeedSource, article.RawContent,
			article.ProcessedContent, embedding, article.ImpactRating, string(article.FeedProfile),
			article.ImageURL, categories, article.CreatedAt.UTC(),
		).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&article.ID); err != nil {
		return fmt.Errorf("failed to insert article: %w", err)
	}
	return nil
}

func (r *sqlArticleRepo) Exists(ctx context.Context, url string) (bool, error) {
	query, args, err := r.sb.Select("id").From(articlesTable).Where(sq.Eq{"url": url}).Limit(1).ToSql()
	if err != nil {
		return false, fmt.Errorf("build select: %w", err)
	}

	var id int64
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check article: %w", err)
	}
	return true, nil
}

func (r *sqlArticleRepo) Get(ctx context.Context, id int64) (*core.Article, error) {
	articles, err := r.selectArticles(ctx, r.selectAll().Where(sq.Eq{"id": id}).Limit(1))
	if err != nil {
		return nil, err
	}
	if len(articles) == 0 {
		return nil, fmt.Errorf("article %d: %w", id, ErrNotFound)
	}
	return &articles[0], nil
}

func (r *sqlArticleRepo) GetUnprocessed(ctx context.Context, profile core.FeedProfile, limit int) ([]core.Article, error) {
	return r.selectArticles(ctx, r.pending(profile, limit, sq.Eq{"processed_content": nil}))
}

func (r *sqlArticleRepo) GetUnrated(ctx context.Context, profile core.FeedProfile, limit int) ([]core.Article, error) {
	return r.selectArticles(ctx, r.pending(profile, limit,
		sq.NotEq{"processed_content": nil},
		sq.Eq{"impact_rating": nil},
	))
}

func (r *sqlArticleRepo) GetUncategorized(ctx context.Context, profile core.FeedProfile, limit int) ([]core.Article, error) {
	return r.selectArticles(ctx, r.pending(profile, limit,
		sq.NotEq{"processed_content": nil},
		sq.Eq{"categories": nil},
	))
}

// pending selects a stage's candidate set, newest first.
func (r *sqlArticleRepo) pending(profile core.FeedProfile, limit int, preds ...sq.Sqlizer) sq.SelectBuilder {
	b := r.selectAll().Where(sq.Eq{"feed_profile": string(profile)})
	for _, p := range preds {
		b = b.Where(p)
	}
	b = b.OrderBy("published_date DESC", "id DESC")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	return b
}

func (r *sqlArticleRepo) GetForBriefing(ctx context.Context, lookbackHours int, profile core.FeedProfile) ([]core.Article, error) {
	cutoff := time.Now().UTC().Add(-time.Duration(lookbackHours) * time.Hour)
	return r.selectArticles(ctx, r.selectAll().
		Where(sq.Eq{"feed_profile": string(profile)}).
		Where(sq.NotEq{"processed_content": nil}).
		Where(sq.NotEq{"embedding": nil}).
		Where(sq.GtOrEq{"published_date": cutoff}).
		OrderBy("COALESCE(impact_rating, 0) DESC", "published_date DESC", "id DESC"))
}

func (r *sqlArticleRepo) UpdateProcessing(ctx context.Context, id int64, processed string, embedding []float64) error {
	if len(embedding) == 0 {
		return fmt.Errorf("article %d: embedding is required with processed content", id)
	}
	encoded, err := encodeEmbedding(embedding)
	if err != nil {
		return err
	}
	return r.update(ctx, id, map[string]interface{}{
		"processed_content": processed,
		"embedding":         encoded,
	})
}

func (r *sqlArticleRepo) UpdateRating(ctx context.Context, id int64, rating int) error {
	return r.update(ctx, id, map[string]interface{}{"impact_rating": rating})
}

func (r *sqlArticleRepo) UpdateCategories(ctx context.Context, id int64, categories []core.Category) error {
	encoded, err := encodeCategories(categories)
	if err != nil {
		return err
	}
	return r.update(ctx, id, map[string]interface{}{"categories": encoded})
}

func (r *sqlArticleRepo) update(ctx context.Context, id int64, values map[string]interface{}) error {
	query, args, err := r.sb.Update(articlesTable).SetMap(values).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update article %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("article %d: %w", id, ErrNotFound)
	}
	return nil
}

func (r *sqlArticleRepo) List(ctx context.Context, filter ArticleFilter) ([]core.Article, error) {
	b := applyFilter(r.selectAll(), filter)

	column := SortPublishedDate
	switch filter.SortBy {
	case SortTitle, SortImpactRating, SortCreatedAt:
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

	return r.selectArticles(ctx, b)
}

func (r *sqlArticleRepo) Count(ctx context.Context, filter ArticleFilter) (int, error) {
	query, args, err := applyFilter(r.sb.Select("COUNT(*)").From(articlesTable), filter).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count articles: %w", err)
	}
	return count, nil
}

func applyFilter(b sq.SelectBuilder, filter ArticleFilter) sq.SelectBuilder {
	if filter.Profile != "" {
		b = b.Where(sq.Eq{"feed_profile": string(filter.Profile)})
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		pattern := "%" + strings.ToLower(term) + "%"
		b = b.Where(sq.Or{
			sq.Like{"LOWER(title)": pattern},
			sq.Like{"LOWER(raw_content)": pattern},
			sq.Like{"LOWER(processed_content)": pattern},
		})
	}
	if filter.StartDate != nil {
		b = b.Where(sq.GtOrEq{"published_date": startOfDay(*filter.StartDate)})
	}
	if filter.EndDate != nil {
		b = b.Where(sq.Lt{"published_date": startOfDay(*filter.EndDate).AddDate(0, 0, 1)})
	}
	if filter.Category != "" {
		b = b.Where(sq.Like{"categories": fmt.Sprintf("%%%q%%", string(filter.Category))})
	}
	return b
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (r *sqlArticleRepo) Delete(ctx context.Context, id int64) error {
	query, args, err := r.sb.Delete(articlesTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete article %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("article %d: %w", id, ErrNotFound)
	}
	return nil
}

func (r *sqlArticleRepo) DistinctProfiles(ctx context.Context) ([]core.FeedProfile, error) {
	query, args, err := r.sb.Select("feed_profile").Distinct().From(articlesTable).OrderBy("feed_profile").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []core.FeedProfile
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		profiles = append(profiles, core.FeedProfile(p))
	}
	return profiles, rows.Err()
}

func (r *sqlArticleRepo) DistinctCategories(ctx context.Context) ([]core.Category, error) {
	query, args, err := r.sb.Select("categories").Distinct().From(articlesTable).
		Where(sq.NotEq{"categories": nil}).
		Where(sq.NotEq{"categories": ""}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	seen := make(map[core.Category]bool)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var categories []core.Category
		if err := json.Unmarshal([]byte(raw), &categories); err != nil {
			continue // skip rows that do not hold a JSON array
		}
		for _, c := range categories {
			seen[c] = true
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := make([]core.Category, 0, len(seen))
	for c := range seen {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result, nil
}

func (r *sqlArticleRepo) Stats(ctx context.Context) (*ArticleStats, error) {
	query, args, err := r.sb.Select(
		"feed_profile",
		"COUNT(*)",
		"SUM(CASE WHEN processed_content IS NOT NULL THEN 1 ELSE 0 END)",
		"SUM(CASE WHEN embedding IS NOT NULL THEN 1 ELSE 0 END)",
		"SUM(CASE WHEN impact_rating IS NOT NULL THEN 1 ELSE 0 END)",
		"SUM(CASE WHEN categories IS NOT NULL THEN 1 ELSE 0 END)",
	).From(articlesTable).GroupBy("feed_profile").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build stats: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to compute stats: %w", err)
	}
	defer rows.Close()

	stats := &ArticleStats{ByProfile: make(map[core.FeedProfile]int)}
	for rows.Next() {
		var (
			profile                                         string
			total, processed, embedded, rated, categorized int
		)
		if err := rows.Scan(&profile, &total, &processed, &embedded, &rated, &categorized); err != nil {
			return nil, err
		}
		stats.ByProfile[core.FeedProfile(profile)] = total
		stats.Total += total
		stats.Processed += processed
		stats.Embedded += embedded
		stats.Rated += rated
		stats.Categorized += categorized
	}
	return stats, rows.Err()
}

func (r *sqlArticleRepo) selectAll() sq.SelectBuilder {
	return r.sb.Select(articleColumns...).From(articlesTable)
}

func (r *sqlArticleRepo) selectArticles(ctx context.Context, b sq.SelectBuilder) ([]core.Article, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query articles: %w", err)
	}
	defer rows.Close()

	var articles []core.Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, *article)
	}
	return articles, rows.Err()
}

func scanArticle(rows *sql.Rows) (*core.Article, error) {
	var (
		article    core.Article
		profile    string
		processed  sql.NullString
		embedding  sql.NullString
		rating     sql.NullInt64
		imageURL   sql.NullString
		categories sql.NullString
	)

	err := rows.Scan(
		&article.ID, &article.URL, &article.Title, &article.PublishedDate, &article.FeedSource, &article.RawContent,
		&processed, &embedding, &rating, &profile, &imageURL, &categories, &article.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan article: %w", err)
	}

	article.FeedProfile = core.FeedProfile(profile)
	if processed.Valid {
		article.ProcessedContent = &processed.String
	}
	if rating.Valid {
		v := int(rating.Int64)
		article.ImpactRating = &v
	}
	if imageURL.Valid {
		article.ImageURL = &imageURL.String
	}
	if embedding.Valid && embedding.String != "" {
		if err := json.Unmarshal([]byte(embedding.String), &article.Embedding); err != nil {
			return nil, fmt.Errorf("failed to unmarshal embedding of article %d: %w", article.ID, err)
		}
	}
	if categories.Valid && categories.String != "" {
		if err := json.Unmarshal([]byte(categories.String), &article.Categories); err != nil {
			return nil, fmt.Errorf("failed to unmarshal categories of article %d: %w", article.ID, err)
		}
	}
	article.PublishedDate = article.PublishedDate.UTC()
	article.CreatedAt = article.CreatedAt.UTC()

	return &article, nil
}

func encodeEmbedding(embedding []float64) (interface{}, error) {
	if len(embedding) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding: %w", err)
	}
	return string(data), nil
}

func encodeCategories(categories []core.Category) (interface{}, error) {
	if len(categories) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(categories)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal categories: %w", err)
	}
	return string(data), nil
}
