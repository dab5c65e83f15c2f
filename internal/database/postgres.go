package database

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// ErrDuplicate is returned when an insert violates a unique constraint.
var ErrDuplicate = errors.New("duplicate record")

const uniqueViolation = "23505"

type PgChurchRepository struct {
	conn *sql.DB
}

func NewPgChurchRepository(dsn string) (*PgChurchRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &PgChurchRepository{conn: db}, nil
}

func (db *PgChurchRepository) Ping() error {
	return db.conn.Ping()
}

func (db *PgChurchRepository) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

func mapError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return err
}
