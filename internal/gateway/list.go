package gateway

import (
	"encoding/json"
	"fmt"
)

// ListResult は一覧レスポンスを正規化した結果。
// 一覧が空の場合、NoticeにKindEmptyResultの分類が入る。
type ListResult struct {
	Items  []json.RawMessage
	Notice *Classification
}

// Empty は一覧が空の場合にtrueを返す。
func (r ListResult) Empty() bool {
	return len(r.Items) == 0
}

// EmptyMessage は空一覧の案内文を返す。
func EmptyMessage(noun string) string {
	return fmt.Sprintf("No %s found. Be the first to add one!", noun)
}

// NormalizeListResponse は配列であるべきレスポンスボディを検証する。
// 配列でない場合はKindUnexpectedのErrorを返す。空配列はエラーではない。
func NormalizeListResponse(payload []byte, noun string) (ListResult, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(payload, &items); err != nil || items == nil {
		return ListResult{}, &Error{
			Classification: Classification{Kind: KindUnexpected, Message: MsgInvalidFormat},
			Err:            err,
		}
	}

	if len(items) == 0 {
		return ListResult{
			Items:  items,
			Notice: &Classification{Kind: KindEmptyResult, Message: EmptyMessage(noun)},
		}, nil
	}
	return ListResult{Items: items}, nil
}

// DecodeList は正規化済みの一覧を型付きのスライスに変換する。
func DecodeList[T any](r ListResult) ([]T, error) {
	out := make([]T, 0, len(r.Items))
	for _, raw := range r.Items {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, &Error{
				Classification: Classification{Kind: KindUnexpected, Message: MsgInvalidFormat},
				Err:            err,
			}
		}
		out = append(out, v)
	}
	return out, nil
}
