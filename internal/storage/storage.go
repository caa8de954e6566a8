// Package storage はクライアント側の永続ストレージを提供する。
// セッションは名前付きの文字列スロット（"user" と "token"）に保存され、
// ログイン時は両方を同時に書き込み、ログアウト時は同時に削除する。
package storage

import "context"

// スロット名。
const (
	// SlotPrincipal はシリアライズ済みPrincipal（JSON）を保持するスロット。
	SlotPrincipal = "user"
	// SlotCredential はバックエンド発行のベアラートークンを保持するスロット。
	SlotCredential = "token"
)

// Store は名前付き文字列スロットの永続化インターフェース。
// SetAll / Delete は複数スロットを1回の操作で反映し、
// 途中状態が他の読み取りから観測されないことを実装が保証する。
type Store interface {
	// Get は指定スロットの値を返す。未設定の場合はok=falseを返す。
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// SetAll は複数スロットをまとめて書き込む。
	SetAll(ctx context.Context, values map[string]string) error

	// Delete は指定スロットをまとめて削除する。存在しないスロットは無視する。
	Delete(ctx context.Context, keys ...string) error
}
