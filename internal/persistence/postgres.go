package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq" // Postgres driver
	"github.com/rs/zerolog"

	"meridian/internal/config"
)

// Dialect selects SQL flavour differences between the supported databases
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

func (d Dialect) placeholder() sq.PlaceholderFormat {
	if d == DialectPostgres {
		return sq.Dollar
	}
	return sq.Question
}

// Store owns the database handle and exposes the repositories built on it
type Store struct {
	db             *sql.DB
	dialect        Dialect
	log            zerolog.Logger
	articles       *sqlArticleRepo
	briefings      *sqlBriefingRepo
	transcriptions *sqlTranscriptionRepo
}

// Open connects to the database named in cfg and, when AutoMigrate is set,
// applies pending migrations.
func Open(ctx context.Context, cfg config.Database, log zerolog.Logger) (*Store, error) {
	var (
		store *Store
		err   error
	)
	switch cfg.Driver {
	case "postgres":
		store, err = OpenPostgres(ctx, cfg.DSN, log)
	case "sqlite", "":
		store, err = OpenSQLite(ctx, cfg.DSN, log)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Driver == "postgres" {
		if cfg.MaxOpenConns > 0 {
			store.db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			store.db.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if cfg.ConnMaxLifetime > 0 {
			store.db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		}
	}

	if cfg.AutoMigrate {
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
	}
	return store, nil
}

// OpenPostgres creates a new PostgreSQL backed store
func OpenPostgres(ctx context.Context, connectionString string, log zerolog.Logger) (*Store, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := ping(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return newStore(db, DialectPostgres, log), nil
}

func ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

func newStore(db *sql.DB, dialect Dialect, log zerolog.Logger) *Store {
	builder := sq.StatementBuilder.PlaceholderFormat(dialect.placeholder())
	return &Store{
		db:             db,
		dialect:        dialect,
		log:            log.With().Str("component", "persistence").Str("dialect", string(dialect)).Logger(),
		articles:       &sqlArticleRepo{db: db, sb: builder},
		briefings:      &sqlBriefingRepo{db: db, sb: builder},
		transcriptions: &sqlTranscriptionRepo{db: db, sb: builder},
	}
}

// Articles returns the article repository
func (s *Store) Articles() ArticleRepository { return s.articles }

// Briefings returns the briefing repository
func (s *Store) Briefings() BriefingRepository { return s.briefings }

// Transcriptions returns the video transcript repository
func (s *Store) Transcriptions() TranscriptionRepository { return s.transcriptions }

// Dialect reports which database the store talks to
func (s *Store) Dialect() Dialect { return s.dialect }

// Migrate applies pending schema migrations
func (s *Store) Migrate(ctx context.Context) error {
	return NewMigrationManager(s).Migrate(ctx)
}

// Close releases the database handle
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
