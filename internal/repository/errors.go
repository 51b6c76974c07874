package repository

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// Общие ошибки для всех реализаций хранилища
var (
	ErrNotFound  = errors.New("entity not found")
	ErrConflict  = errors.New("entity state changed concurrently")
	ErrDuplicate = errors.New("entity already exists")
)

const pqUniqueViolation = "23505"

// mapError переводит ошибки драйвера в общие ошибки репозитория.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return ErrDuplicate
	}
	return err
}

// expectOne ErrConflict, если CAS-обновление не затронуло ни одной строки.
func expectOne(res sql.Result, err error) error {
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}
