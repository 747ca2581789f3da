package store

import (
	"database/sql"
	"errors"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrStaleRevision = errors.New("stale revision")
)

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
