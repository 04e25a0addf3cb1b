package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/watchmen/internal/domain"
	"github.com/hamed0406/watchmen/internal/repo"
)

var _ repo.OutageStore = (*Store)(nil)
var _ repo.OutageLister = (*Store)(nil)
var _ repo.ResultStore = (*Store)(nil)

// Schema creates the tables used by Store. At most one open outage per service
// is enforced by a partial unique index.
const Schema = `
CREATE TABLE IF NOT EXISTS outages (
  id          TEXT PRIMARY KEY,
  service_id  TEXT NOT NULL,
  started_at  TIMESTAMPTZ NOT NULL,
  error       TEXT NOT NULL,
  downtime_ms BIGINT NULL,
  closed_at   TIMESTAMPTZ NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_outages_open ON outages (service_id) WHERE closed_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_outages_service_time ON outages (service_id, started_at DESC);

CREATE TABLE IF NOT EXISTS results (
  id          BIGSERIAL PRIMARY KEY,
  service_id  TEXT NOT NULL,
  up          BOOLEAN NOT NULL,
  http_status INTEGER NULL,
  latency_ms  DOUBLE PRECISION NOT NULL,
  reason      TEXT NOT NULL,
  checked_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_results_service_time ON results (service_id, checked_at DESC);
`

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{pool: pool, log: log}, nil
}

// Migrate applies Schema. It is safe to run repeatedly.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	s.log.Info("postgres_schema_applied")
	return nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// ---- OutageStore ----

func (s *Store) ReadOpenOutage(ctx context.Context, id domain.ServiceID) (*domain.Outage, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, started_at, error
		   FROM outages
		  WHERE service_id = $1 AND closed_at IS NULL`, string(id))
	o := domain.Outage{ServiceID: id}
	if err := row.Scan(&o.ID, &o.Timestamp, &o.Error); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("read open outage: %w", err)
	}
	return &o, nil
}

func (s *Store) OpenOutage(ctx context.Context, id domain.ServiceID, start time.Time, errText string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO outages (id, service_id, started_at, error)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (service_id) WHERE closed_at IS NULL
		 DO UPDATE SET error = EXCLUDED.error`,
		uuid.NewString(), string(id), start.UTC(), errText,
	)
	if err != nil {
		return fmt.Errorf("insert outage: %w", err)
	}
	return nil
}

func (s *Store) UpdateOutage(ctx context.Context, id domain.ServiceID, errText string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE outages SET error = $2
		  WHERE service_id = $1 AND closed_at IS NULL`,
		string(id), errText,
	)
	if err != nil {
		return fmt.Errorf("update outage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNoOpenOutage
	}
	return nil
}

func (s *Store) CloseOutage(ctx context.Context, id domain.ServiceID, downtime time.Duration) (*domain.Outage, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE outages
		    SET downtime_ms = $2,
		        closed_at   = started_at + ($3::double precision * INTERVAL '1 millisecond')
		  WHERE service_id = $1 AND closed_at IS NULL
		 RETURNING id, started_at, error, closed_at`,
		string(id), downtime.Milliseconds(), float64(downtime.Milliseconds()),
	)
	o := domain.Outage{ServiceID: id, Downtime: downtime}
	var closedAt time.Time
	if err := row.Scan(&o.ID, &o.Timestamp, &o.Error, &closedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNoOpenOutage
		}
		return nil, fmt.Errorf("close outage: %w", err)
	}
	o.ClosedAt = &closedAt
	return &o, nil
}

func (s *Store) ListOutages(ctx context.Context, id domain.ServiceID, limit int) ([]domain.Outage, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, started_at, error, downtime_ms, closed_at
		   FROM outages
		  WHERE service_id = $1 AND closed_at IS NOT NULL
		  ORDER BY started_at DESC
		  LIMIT $2`, string(id), limit)
	if err != nil {
		return nil, fmt.Errorf("list outages: %w", err)
	}
	defer rows.Close()

	var out []domain.Outage
	for rows.Next() {
		var (
			o          = domain.Outage{ServiceID: id}
			downtimeMS *int64
			closedAt   *time.Time
		)
		if err := rows.Scan(&o.ID, &o.Timestamp, &o.Error, &downtimeMS, &closedAt); err != nil {
			return nil, fmt.Errorf("scan outage: %w", err)
		}
		if downtimeMS != nil {
			o.Downtime = time.Duration(*downtimeMS) * time.Millisecond
		}
		o.ClosedAt = closedAt
		out = append(out, o)
	}
	return out, rows.Err()
}

// ---- ResultStore ----

func (s *Store) Append(ctx context.Context, cr *domain.CheckResult) error {
	var statusPtr *int
	if cr.HTTPStatus != 0 {
		statusPtr = &cr.HTTPStatus
	}
	if cr.CheckedAt.IsZero() {
		cr.CheckedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO results
		   (service_id, up, http_status, latency_ms, reason, checked_at)
		 VALUES
		   ($1, $2, $3, $4, $5, $6)`,
		string(cr.ServiceID), cr.Up, statusPtr, cr.LatencyMS, cr.Reason, cr.CheckedAt,
	)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

func (s *Store) Latest(ctx context.Context) ([]domain.CheckResult, error) {
	rows, err := s.pool.Query(ctx, `
SELECT DISTINCT ON (service_id)
       service_id,
       up,
       http_status,
       latency_ms,
       reason,
       checked_at
  FROM results
 ORDER BY service_id, checked_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("latest: %w", err)
	}
	defer rows.Close()

	var out []domain.CheckResult
	for rows.Next() {
		var (
			serviceID string
			status    *int32
			r         domain.CheckResult
		)
		if err := rows.Scan(&serviceID, &r.Up, &status, &r.LatencyMS, &r.Reason, &r.CheckedAt); err != nil {
			return nil, fmt.Errorf("scan latest: %w", err)
		}
		r.ServiceID = domain.ServiceID(serviceID)
		if status != nil {
			r.HTTPStatus = int(*status)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
