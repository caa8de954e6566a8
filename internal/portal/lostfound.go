package portal

import (
	"context"
	"net/http"
	"strings"

	"github.com/hitoshi/campuslink/internal/model"
)

const lostFoundPath = "/api/lost-found"

// LostFound は落とし物・拾得物の一覧を取得する。
func (c *Client) LostFound(ctx context.Context) (*List[model.LostFoundItem], error) {
	return fetchList[model.LostFoundItem](ctx, c.gw, lostFoundPath, "items")
}

// CreateLostFound は落とし物・拾得物を掲示する。タイトル・詳細・場所は必須。
func (c *Client) CreateLostFound(ctx context.Context, item model.LostFoundItem) (*model.LostFoundItem, error) {
	if err := normalizeLostFound(&item); err != nil {
		return nil, err
	}

	var created model.LostFoundItem
	if err := c.submit(ctx, "create-lost-found", http.MethodPost, lostFoundPath, item, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateLostFound は掲示内容を更新する。
func (c *Client) UpdateLostFound(ctx context.Context, id string, item model.LostFoundItem) (*model.LostFoundItem, error) {
	if id == "" {
		return nil, model.ErrResourceIDRequired
	}
	if err := normalizeLostFound(&item); err != nil {
		return nil, err
	}

	var updated model.LostFoundItem
	if err := c.submit(ctx, "update-lost-found:"+id, http.MethodPut, resourcePath(lostFoundPath, id), item, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteLostFound は掲示を削除する。
func (c *Client) DeleteLostFound(ctx context.Context, id string) error {
	if id == "" {
		return model.ErrResourceIDRequired
	}
	return deleteResource(ctx, c, "delete-lost-found", lostFoundPath, id)
}

func normalizeLostFound(item *model.LostFoundItem) error {
	item.Title = strings.TrimSpace(item.Title)
	item.Description = strings.TrimSpace(item.Description)
	item.Location = strings.TrimSpace(item.Location)
	item.ContactInfo = strings.TrimSpace(item.ContactInfo)
	if item.Title == "" || item.Description == "" || item.Location == "" {
		return model.ErrFieldsRequired
	}
	if item.Status == "" {
		item.Status = "lost"
	}
	return nil
}

// LostFoundFilter は一覧の絞り込み条件。空文字列や"all"は絞り込まない。
type LostFoundFilter struct {
	ItemType string
	Status   string
	Search   string
}

// FilterLostFound は種別・状態・キーワードで一覧を絞り込む。
// キーワードはタイトル・詳細・場所に対して大文字小文字を区別せずに照合する。
func FilterLostFound(items []model.LostFoundItem, f LostFoundFilter) []model.LostFoundItem {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]model.LostFoundItem, 0, len(items))
	for _, item := range items {
		if f.ItemType != "" && f.ItemType != "all" && item.ItemType != f.ItemType {
			continue
		}
		if f.Status != "" && f.Status != "all" && item.Status != f.Status {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(item.Title), search) &&
			!strings.Contains(strings.ToLower(item.Description), search) &&
			!strings.Contains(strings.ToLower(item.Location), search) {
			continue
		}
		out = append(out, item)
	}
	return out
}
