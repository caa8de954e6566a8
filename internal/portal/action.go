package portal

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrInFlight は同じ操作のリクエストが応答待ちの間に再送信された場合のエラー。
var ErrInFlight = errors.New("request already in progress")

// Action は1つの操作につき同時に1件のリクエストだけを許可する。
// 待ち合わせやキューイングは行わず、2件目は即座にErrInFlightで拒否する。
type Action struct {
	name     string
	inFlight atomic.Bool
}

// NewAction はActionを生成する。
func NewAction(name string) *Action {
	return &Action{name: name}
}

// Name は操作名を返す。
func (a *Action) Name() string {
	return a.name
}

// InFlight はリクエストが応答待ちかを返す。
func (a *Action) InFlight() bool {
	return a.inFlight.Load()
}

// Run はfnを実行する。既に実行中の場合はfnを呼ばずにErrInFlightを返す。
func (a *Action) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	if !a.inFlight.CompareAndSwap(false, true) {
		return ErrInFlight
	}
	defer a.inFlight.Store(false)
	return fn(ctx)
}

// actionSet は操作名ごとのActionを遅延生成して保持する。
type actionSet struct {
	actions sync.Map
}

func (s *actionSet) get(name string) *Action {
	if a, ok := s.actions.Load(name); ok {
		return a.(*Action)
	}
	a, _ := s.actions.LoadOrStore(name, NewAction(name))
	return a.(*Action)
}
