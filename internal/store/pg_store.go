package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/SWAYAM31220/lootspy/internal/dedup"
	"github.com/SWAYAM31220/lootspy/internal/log"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

type PGStore struct {
	db     *sql.DB
	logger *log.Logger
	now    func() time.Time
}

func OpenPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

func NewPGStore(db *sql.DB, logger *log.Logger) *PGStore {
	return &PGStore{
		db:     db,
		logger: logger.Named("pg_store"),
		now:    time.Now,
	}
}

func (s *PGStore) TryReserve(ctx context.Context, claim Claim) (ReserveResult, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
           INSERT INTO forwarded_deals (dedup_key, bucket, display_name, origin_tag, created_at)
           VALUES ($1, $2, $3, $4, $5)
           RETURNING id
       `, string(claim.Key), string(claim.Bucket), claim.DisplayName, claim.OriginTag, s.now().UTC()).Scan(&id)
	if err != nil {
		if isPGUniqueViolation(err) {
			return Duplicate(), nil
		}
		return ReserveResult{}, fmt.Errorf("insert reservation: %w", err)
	}
	return Reserved(id), nil
}

func (s *PGStore) Release(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `
           DELETE FROM forwarded_deals WHERE id = $1
       `, id)
	if err != nil {
		return fmt.Errorf("delete reservation %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		s.logger.Debug("Release found no row", zap.Int64("row_id", id))
	}
	return nil
}

func (s *PGStore) Lookup(ctx context.Context, key dedup.Key, bucket dedup.Bucket) (*Reservation, error) {
	var (
		r   Reservation
		day time.Time
	)
	err := s.db.QueryRowContext(ctx, `
           SELECT id, dedup_key, bucket, display_name, origin_tag, created_at
           FROM forwarded_deals WHERE dedup_key = $1 AND bucket = $2
       `, string(key), string(bucket)).Scan(&r.ID, &r.Key, &day, &r.DisplayName, &r.OriginTag, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup reservation: %w", err)
	}
	r.Bucket = dedup.BucketOf(day)
	return &r, nil
}

func (s *PGStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func isPGUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Name() == "unique_violation"
	}
	return false
}
