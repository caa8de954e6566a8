package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// exerciseStore はStore実装に共通する振る舞いを検証する。
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, SlotPrincipal); err != nil || ok {
		t.Fatalf("empty store Get = (ok=%v, err=%v), want (false, nil)", ok, err)
	}

	err := s.SetAll(ctx, map[string]string{
		SlotPrincipal:  `{"id":"u1"}`,
		SlotCredential: "tok123456",
	})
	if err != nil {
		t.Fatalf("SetAll returned error: %v", err)
	}

	v, ok, err := s.Get(ctx, SlotPrincipal)
	if err != nil || !ok || v != `{"id":"u1"}` {
		t.Errorf("Get(user) = (%q, %v, %v)", v, ok, err)
	}
	v, ok, err = s.Get(ctx, SlotCredential)
	if err != nil || !ok || v != "tok123456" {
		t.Errorf("Get(token) = (%q, %v, %v)", v, ok, err)
	}

	// 上書き
	if err := s.SetAll(ctx, map[string]string{SlotCredential: "tok-2"}); err != nil {
		t.Fatalf("SetAll overwrite returned error: %v", err)
	}
	if v, _, _ := s.Get(ctx, SlotCredential); v != "tok-2" {
		t.Errorf("Get(token) after overwrite = %q, want tok-2", v)
	}

	if err := s.Delete(ctx, SlotPrincipal, SlotCredential); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	for _, k := range []string{SlotPrincipal, SlotCredential} {
		if _, ok, err := s.Get(ctx, k); err != nil || ok {
			t.Errorf("Get(%s) after Delete = (ok=%v, err=%v), want (false, nil)", k, ok, err)
		}
	}

	// 存在しないスロットの削除はエラーにならない
	if err := s.Delete(ctx, SlotPrincipal, SlotCredential); err != nil {
		t.Errorf("second Delete returned error: %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	exerciseStore(t, NewFileStore(path))

	// 全スロット削除後はファイル自体が残らない
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("session file should be removed after all slots are deleted, stat err = %v", err)
	}
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	ctx := context.Background()

	if err := NewFileStore(path).SetAll(ctx, map[string]string{SlotCredential: "tok"}); err != nil {
		t.Fatalf("SetAll returned error: %v", err)
	}

	v, ok, err := NewFileStore(path).Get(ctx, SlotCredential)
	if err != nil || !ok || v != "tok" {
		t.Errorf("Get from new instance = (%q, %v, %v), want (tok, true, nil)", v, ok, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("session file perm = %o, want 600", perm)
	}
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("failed to write corrupt file: %v", err)
	}
	s := NewFileStore(path)
	ctx := context.Background()

	if _, _, err := s.Get(ctx, SlotPrincipal); err == nil {
		t.Error("Get on corrupt file should return error")
	}

	// 削除は壊れたファイルを破棄して成功する
	if err := s.Delete(ctx, SlotPrincipal, SlotCredential); err != nil {
		t.Fatalf("Delete on corrupt file returned error: %v", err)
	}
	if _, ok, err := s.Get(ctx, SlotPrincipal); err != nil || ok {
		t.Errorf("Get after purge = (ok=%v, err=%v), want (false, nil)", ok, err)
	}
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	exerciseStore(t, NewRedisStore(client, "campuslink"))
}

func TestRedisStore_UsesPrefixedKeys(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	s := NewRedisStore(client, "profile-a")
	err := s.SetAll(context.Background(), map[string]string{SlotCredential: "tok"})
	if err != nil {
		t.Fatalf("SetAll returned error: %v", err)
	}

	got, err := mr.Get("profile-a:token")
	if err != nil {
		t.Fatalf("miniredis Get failed: %v", err)
	}
	if got != "tok" {
		t.Errorf("stored value = %q, want tok", got)
	}
}

func TestNewRedisClient_EmptyURL(t *testing.T) {
	if _, err := NewRedisClient(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty redis url")
	}
}

func TestNewRedisClient_ConnectsToMiniredis(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr()+"/0")
	if err != nil {
		t.Fatalf("NewRedisClient returned error: %v", err)
	}
	client.Close()
}

// PostgresStoreはStoreインターフェースを満たすことを検証
func TestPostgresStore_ImplementsInterface(t *testing.T) {
	var _ Store = (*PostgresStore)(nil)
}

func TestNewPostgresStore_Initializes(t *testing.T) {
	s := NewPostgresStore(nil, "campuslink")
	if s == nil {
		t.Fatal("expected non-nil store")
	}
	if s.namespace != "campuslink" {
		t.Errorf("namespace = %q, want campuslink", s.namespace)
	}
}

func TestPostgresStore_DeleteWithoutKeysIsNoop(t *testing.T) {
	// DB接続なしでもキー指定なしの削除はクエリを発行しない
	s := NewPostgresStore(nil, "campuslink")
	if err := s.Delete(context.Background()); err != nil {
		t.Errorf("Delete() with no keys returned error: %v", err)
	}
}
