package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// PostgresStore はPostgreSQLのclient_slotsテーブルを使用したStore実装。
// 共有端末など、複数プロファイルのセッションを1つのDBで管理する場合に使う。
// namespaceごとにスロットが分離される。
type PostgresStore struct {
	db        *sql.DB
	namespace string
}

// NewPostgresStore はPostgresStoreを生成する。
// テーブルは database.RunMigrations で作成しておくこと。
func NewPostgresStore(db *sql.DB, namespace string) *PostgresStore {
	return &PostgresStore{db: db, namespace: namespace}
}

// Get は指定スロットの値を返す。
func (s *PostgresStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM client_slots WHERE namespace = $1 AND key = $2`,
		s.namespace, key,
	).Scan(&value)

	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get slot %q: %w", key, err)
	}
	return value, true, nil
}

// SetAll は複数スロットを同一トランザクションでUPSERTする。
func (s *PostgresStore) SetAll(ctx context.Context, values map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for k, v := range values {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO client_slots (namespace, key, value, updated_at)
			 VALUES ($1, $2, $3, now())
			 ON CONFLICT (namespace, key)
			 DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
			s.namespace, k, v,
		)
		if err != nil {
			return fmt.Errorf("failed to set slot %q: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit slots: %w", err)
	}
	return nil
}

// Delete は指定スロットを1文でまとめて削除する。
func (s *PostgresStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM client_slots WHERE namespace = $1 AND key = ANY($2)`,
		s.namespace, pq.Array(keys),
	)
	if err != nil {
		return fmt.Errorf("failed to delete slots: %w", err)
	}
	return nil
}

var _ Store = (*PostgresStore)(nil)
