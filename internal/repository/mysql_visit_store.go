package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/abdosalm555/visit-pass/internal/model"
)

// MySQLVisitStore persists visit records in the `visits` table.  Row-level
// locking (SELECT ... FOR UPDATE inside a transaction) gives Update its
// per-token linearization: concurrent updates on one token queue on the
// row lock while other tokens proceed untouched.
//
// Schema, with stable column names so deployments can grow the table
// without breaking readers (absent/NULL columns scan as zero values):
//
//	CREATE TABLE visits (
//	  token                   VARCHAR(64)  PRIMARY KEY,
//	  signature               VARBINARY(512) NULL,
//	  visitor_name            VARCHAR(255) NOT NULL,
//	  host_name               VARCHAR(255) NOT NULL,
//	  location                VARCHAR(255) NOT NULL DEFAULT '',
//	  purpose                 VARCHAR(255) NOT NULL DEFAULT '',
//	  requested_duration_secs BIGINT       NOT NULL,
//	  issued_at               DATETIME(6)  NOT NULL,
//	  daily_expiry            DATETIME(6)  NOT NULL,
//	  identity_verified       TINYINT(1)   NOT NULL DEFAULT 0,
//	  identity_artifact       VARCHAR(255) NULL,
//	  confirmed_at            DATETIME(6)  NULL
//	);
type MySQLVisitStore struct {
	db *sql.DB
}

// NewMySQLVisitStore returns a store bound to the provided database.
func NewMySQLVisitStore(db *sql.DB) *MySQLVisitStore { return &MySQLVisitStore{db: db} }

const visitColumns = `token, signature, visitor_name, host_name, location, purpose,
 requested_duration_secs, issued_at, daily_expiry, identity_verified, identity_artifact, confirmed_at`

// Put inserts a new record.  A duplicate primary key (MySQL error 1062)
// maps to ErrTokenExists so the issuer can retry with a fresh token.
func (s *MySQLVisitStore) Put(ctx context.Context, rec model.VisitRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO visits (`+visitColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		rec.Token, nullBytes(rec.Signature), rec.VisitorName, rec.HostName,
		rec.Location, rec.Purpose, int64(rec.RequestedDuration/time.Second),
		rec.IssuedAt.UTC(), rec.DailyExpiry.UTC(), rec.IdentityVerified,
		nullString(rec.IdentityArtifact), nullTime(rec.ConfirmedAt))
	if err != nil {
		if strings.Contains(err.Error(), "1062") {
			return ErrTokenExists
		}
		return err
	}
	return nil
}

// Get returns the record for a token.
func (s *MySQLVisitStore) Get(ctx context.Context, token string) (model.VisitRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+visitColumns+` FROM visits WHERE token = ? LIMIT 1`, token)
	return scanVisit(row)
}

// Update loads the row under FOR UPDATE, applies mutate and writes the
// result back in the same transaction.  A mutate error rolls the
// transaction back and is returned verbatim, leaving the row unchanged.
func (s *MySQLVisitStore) Update(ctx context.Context, token string, mutate func(*model.VisitRecord) error) (model.VisitRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.VisitRecord{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	row := tx.QueryRowContext(ctx,
		`SELECT `+visitColumns+` FROM visits WHERE token = ? LIMIT 1 FOR UPDATE`, token)
	rec, err := scanVisit(row)
	if err != nil {
		return model.VisitRecord{}, err
	}
	if err := mutate(&rec); err != nil {
		return model.VisitRecord{}, err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE visits SET identity_verified = ?, identity_artifact = ?, confirmed_at = ? WHERE token = ?`,
		rec.IdentityVerified, nullString(rec.IdentityArtifact), nullTime(rec.ConfirmedAt), token)
	if err != nil {
		return model.VisitRecord{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.VisitRecord{}, err
	}
	committed = true
	return rec, nil
}

// scanVisit reads one visits row.  Nullable columns scan through sql.Null*
// wrappers into the record's zero values.
func scanVisit(row *sql.Row) (model.VisitRecord, error) {
	var (
		rec      model.VisitRecord
		secs     int64
		artifact sql.NullString
		confAt   sql.NullTime
	)
	err := row.Scan(&rec.Token, &rec.Signature, &rec.VisitorName, &rec.HostName,
		&rec.Location, &rec.Purpose, &secs, &rec.IssuedAt, &rec.DailyExpiry,
		&rec.IdentityVerified, &artifact, &confAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.VisitRecord{}, ErrVisitNotFound
		}
		return model.VisitRecord{}, err
	}
	rec.RequestedDuration = time.Duration(secs) * time.Second
	if artifact.Valid {
		rec.IdentityArtifact = artifact.String
	}
	if confAt.Valid {
		t := confAt.Time.UTC()
		rec.ConfirmedAt = &t
	}
	return rec, nil
}

func nullBytes(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return b
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}
