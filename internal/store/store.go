package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/trafficsim/api/schemas"
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store persists session results in PostgreSQL.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

const (
	sqlUpsertSession = `
        INSERT INTO sessions (id, campaign_id, user_email, started_at, ended_at, duration_seconds,
            device, source, specific_referrer, visited, completed, bounced,
            pages_created, total_actions, successful_actions, ad_interactions, errors, ad_report)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
        ON CONFLICT (id) DO UPDATE SET
            ended_at = EXCLUDED.ended_at,
            duration_seconds = EXCLUDED.duration_seconds,
            visited = EXCLUDED.visited,
            completed = EXCLUDED.completed,
            bounced = EXCLUDED.bounced,
            pages_created = EXCLUDED.pages_created,
            total_actions = EXCLUDED.total_actions,
            successful_actions = EXCLUDED.successful_actions,
            ad_interactions = EXCLUDED.ad_interactions,
            errors = EXCLUDED.errors,
            ad_report = EXCLUDED.ad_report;
    `
	sqlDeleteAdClicks = `DELETE FROM ad_clicks WHERE session_id = $1`
)

var adClickColumns = []string{"session_id", "ad_type", "selector", "page_url", "domain", "success", "reason", "occurred_at"}

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// Connect opens a connection pool for url and wraps it in a Store. The
// returned func closes the pool.
func Connect(ctx context.Context, url string, logger *zap.Logger) (*Store, func(), error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	s, err := New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return s, pool.Close, nil
}

// SaveSession upserts the session row and replaces its ad click rows in one
// transaction.
func (s *Store) SaveSession(ctx context.Context, r *schemas.SessionResult) error {
	if r == nil || r.SessionID == "" {
		return fmt.Errorf("session result has no id")
	}

	errorsJSON, err := json.Marshal(nonNil(r.Errors))
	if err != nil {
		return fmt.Errorf("failed to encode errors: %w", err)
	}
	reportJSON := []byte("{}")
	if r.AdReport != nil {
		if reportJSON, err = json.Marshal(r.AdReport); err != nil {
			return fmt.Errorf("failed to encode ad report: %w", err)
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	_, err = tx.Exec(ctx, sqlUpsertSession,
		r.SessionID, r.CampaignID, r.UserEmail,
		r.StartTime.UTC(), r.EndTime.UTC(), r.DurationSeconds,
		r.Device, string(r.Source), r.SpecificReferrer,
		r.Visited, r.Completed, r.Bounced,
		r.PagesCreated, r.TotalActions, r.SuccessfulActions, r.AdInteractions,
		errorsJSON, reportJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}

	if err := s.replaceAdClicks(ctx, tx, r); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Debug("Session persisted.", zap.String("session_id", r.SessionID))
	return nil
}

func (s *Store) replaceAdClicks(ctx context.Context, tx pgx.Tx, r *schemas.SessionResult) error {
	if _, err := tx.Exec(ctx, sqlDeleteAdClicks, r.SessionID); err != nil {
		return fmt.Errorf("failed to clear ad clicks: %w", err)
	}
	if r.AdReport == nil {
		return nil
	}
	clicks := r.AdReport.DetailedInteractions.ClickedAds
	if len(clicks) == 0 {
		return nil
	}

	rows := make([][]interface{}, len(clicks))
	for i, c := range clicks {
		rows[i] = []interface{}{
			r.SessionID, c.AdType, c.Selector, c.URL, c.Domain,
			c.Success, c.Reason, c.Timestamp.UTC(),
		}
	}
	n, err := tx.CopyFrom(ctx, pgx.Identifier{"ad_clicks"}, adClickColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to copy ad clicks: %w", err)
	}
	if int(n) != len(clicks) {
		return fmt.Errorf("mismatch in copied ad clicks count: expected %d, got %d", len(clicks), n)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
