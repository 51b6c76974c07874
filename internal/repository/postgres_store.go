package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/hive-backend/internal/repository/common"
)

// queries реализует Tx поверх пула или транзакции.
type queries struct {
	ext  sqlx.ExtContext
	inTx bool
}

// PostgresStore хранилище движка в PostgreSQL.
type PostgresStore struct {
	queries
	db *sqlx.DB
}

// NewPostgresStore создаёт новый экземпляр.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{queries: queries{ext: db}, db: db}
}

// InTx выполняет fn в одной транзакции БД.
func (s *PostgresStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	// READ COMMITTED достаточно: порядок операций над заданием держит FOR UPDATE в GetGig,
	// остальное защищено CAS-условиями и частичными уникальными индексами.
	opts := &sql.TxOptions{Isolation: sql.LevelReadCommitted}
	return common.WithTransaction(ctx, s.db, opts, func(tx *sqlx.Tx) error {
		return fn(queries{ext: tx, inTx: true})
	})
}

var _ Store = (*PostgresStore)(nil)
