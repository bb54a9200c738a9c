package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/SWAYAM31220/lootspy/internal/dedup"
	"github.com/SWAYAM31220/lootspy/internal/log"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// SQLiteStore keeps reservations in a local SQLite file. It only arbitrates
// between runs of processes sharing that file.
type SQLiteStore struct {
	db     *sql.DB
	logger *log.Logger
	now    func() time.Time
}

// OpenSQLite opens path with a busy timeout so concurrent inserts wait instead of failing.
// A leading "file:" is accepted.
func OpenSQLite(path string) (*sql.DB, error) {
	path = strings.TrimPrefix(path, "file:")
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}

func NewSQLiteStore(db *sql.DB, logger *log.Logger) *SQLiteStore {
	return &SQLiteStore{
		db:     db,
		logger: logger.Named("sqlite_store"),
		now:    time.Now,
	}
}

func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) TryReserve(ctx context.Context, claim Claim) (ReserveResult, error) {
	res, err := s.db.ExecContext(ctx, `
           INSERT INTO forwarded_deals (dedup_key, bucket, display_name, origin_tag, created_at)
           VALUES (?, ?, ?, ?, ?)
       `, string(claim.Key), string(claim.Bucket), claim.DisplayName, claim.OriginTag, s.now().UTC())
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return Duplicate(), nil
		}
		return ReserveResult{}, fmt.Errorf("insert reservation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return ReserveResult{}, fmt.Errorf("reservation id: %w", err)
	}
	return Reserved(id), nil
}

func (s *SQLiteStore) Release(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM forwarded_deals WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete reservation %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		s.logger.Debug("Release found no row", zap.Int64("row_id", id))
	}
	return nil
}

func (s *SQLiteStore) Lookup(ctx context.Context, key dedup.Key, bucket dedup.Bucket) (*Reservation, error) {
	var r Reservation
	err := s.db.QueryRowContext(ctx, `
           SELECT id, dedup_key, bucket, display_name, origin_tag, created_at
           FROM forwarded_deals WHERE dedup_key = ? AND bucket = ?
       `, string(key), string(bucket)).Scan(&r.ID, &r.Key, &r.Bucket, &r.DisplayName, &r.OriginTag, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup reservation: %w", err)
	}
	return &r, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func isSQLiteUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
