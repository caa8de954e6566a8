package portal

import (
	"context"
	"net/http"
	"strings"

	"github.com/hitoshi/campuslink/internal/model"
)

const (
	announcementsListPath   = "/api/announcements/getann"
	announcementsCreatePath = "/api/announcements/createann"
)

// Announcements はお知らせの一覧を取得する。
func (c *Client) Announcements(ctx context.Context) (*List[model.Announcement], error) {
	return fetchList[model.Announcement](ctx, c.gw, announcementsListPath, "announcements")
}

// CreateAnnouncement はお知らせを投稿する。タイトルと本文は必須。
func (c *Client) CreateAnnouncement(ctx context.Context, a model.Announcement) (*model.Announcement, error) {
	a.Title = strings.TrimSpace(a.Title)
	a.Description = strings.TrimSpace(a.Description)
	if a.Title == "" || a.Description == "" {
		return nil, model.ErrFieldsRequired
	}
	if a.Category == "" {
		a.Category = "event"
	}

	var created model.Announcement
	if err := c.submit(ctx, "create-announcement", http.MethodPost, announcementsCreatePath, a, &created); err != nil {
		return nil, err
	}
	return &created, nil
}
