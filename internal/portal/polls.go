package portal

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/campuslink/internal/model"
)

const pollsPath = "/api/polls"

// Polls はアンケートの一覧を取得する。categoryが空または"all"の場合は全件。
func (c *Client) Polls(ctx context.Context, category string) (*List[model.Poll], error) {
	path := pollsPath
	if category != "" && category != "all" {
		path = pollsPath + "/category/" + url.PathEscape(category)
	}
	return fetchList[model.Poll](ctx, c.gw, path, "polls")
}

// CreatePoll はアンケートを作成する。
// 質問と、空白でない選択肢が2つ以上必要。空白の選択肢は送信前に取り除く。
func (c *Client) CreatePoll(ctx context.Context, req model.NewPollRequest) (*model.Poll, error) {
	req.Question = strings.TrimSpace(req.Question)
	req.Description = strings.TrimSpace(req.Description)

	options := make([]string, 0, len(req.Options))
	for _, opt := range req.Options {
		if strings.TrimSpace(opt) != "" {
			options = append(options, opt)
		}
	}
	if req.Question == "" || len(options) < 2 {
		return nil, model.ErrPollQuestionRequired
	}
	req.Options = options

	if req.EndDate != nil && *req.EndDate == "" {
		req.EndDate = nil
	}
	if req.Category == "" {
		req.Category = "general"
	}

	var created model.Poll
	if err := c.submit(ctx, "create-poll", http.MethodPost, pollsPath, req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// Vote は選択肢のインデックスで投票し、更新後のアンケートを返す。
func (c *Client) Vote(ctx context.Context, pollID string, optionIndex int) (*model.Poll, error) {
	if pollID == "" {
		return nil, model.ErrResourceIDRequired
	}

	body := struct {
		OptionIndex int `json:"optionIndex"`
	}{OptionIndex: optionIndex}

	var updated model.Poll
	if err := c.submit(ctx, "vote:"+pollID, http.MethodPost, resourcePath(pollsPath, pollID)+"/vote", body, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// PollResults はアンケートの集計結果を取得する。
func (c *Client) PollResults(ctx context.Context, pollID string) (*model.PollResults, error) {
	if pollID == "" {
		return nil, model.ErrResourceIDRequired
	}

	var results model.PollResults
	if err := c.gw.Do(ctx, http.MethodGet, resourcePath(pollsPath, pollID)+"/results", nil, &results); err != nil {
		return nil, err
	}
	return &results, nil
}

// DeletePoll はアンケートを削除する。
func (c *Client) DeletePoll(ctx context.Context, pollID string) error {
	if pollID == "" {
		return model.ErrResourceIDRequired
	}
	return deleteResource(ctx, c, "delete-poll", pollsPath, pollID)
}
