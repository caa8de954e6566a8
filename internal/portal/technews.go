package portal

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/campuslink/internal/model"
)

const techNewsPath = "/api/tech-news"

// TechNews はテックニュースの一覧を取得する。newsTypeが空または"all"の場合は全件。
func (c *Client) TechNews(ctx context.Context, newsType string) (*List[model.TechNews], error) {
	path := techNewsPath
	if newsType != "" && newsType != "all" {
		path = techNewsPath + "/type/" + url.PathEscape(newsType)
	}
	return fetchList[model.TechNews](ctx, c.gw, path, "tech news")
}

// CreateTechNews はテックニュースを投稿する。タイトルと本文は必須。
func (c *Client) CreateTechNews(ctx context.Context, n model.TechNews) (*model.TechNews, error) {
	n.Title = strings.TrimSpace(n.Title)
	n.Description = strings.TrimSpace(n.Description)
	if n.Title == "" || n.Description == "" {
		return nil, model.ErrFieldsRequired
	}
	if n.Type == "" {
		n.Type = "tech_news"
	}
	if n.Priority <= 0 {
		n.Priority = 1
	}

	var created model.TechNews
	if err := c.submit(ctx, "create-tech-news", http.MethodPost, techNewsPath, n, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// DeleteTechNews はテックニュースを削除する。
func (c *Client) DeleteTechNews(ctx context.Context, id string) error {
	if id == "" {
		return model.ErrResourceIDRequired
	}
	return deleteResource(ctx, c, "delete-tech-news", techNewsPath, id)
}
