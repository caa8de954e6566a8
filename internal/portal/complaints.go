package portal

import (
	"context"
	"net/http"
	"strings"

	"github.com/hitoshi/campuslink/internal/model"
)

const complaintsPath = "/api/complaints"

// Complaints は苦情の一覧を取得する。
func (c *Client) Complaints(ctx context.Context) (*List[model.Complaint], error) {
	return fetchList[model.Complaint](ctx, c.gw, complaintsPath, "complaints")
}

// CreateComplaint は苦情を登録する。タイトル・詳細・場所は必須。
func (c *Client) CreateComplaint(ctx context.Context, cp model.Complaint) (*model.Complaint, error) {
	cp.Title = strings.TrimSpace(cp.Title)
	cp.Description = strings.TrimSpace(cp.Description)
	cp.Location = strings.TrimSpace(cp.Location)
	if cp.Title == "" || cp.Description == "" || cp.Location == "" {
		return nil, model.ErrFieldsRequired
	}
	if cp.Priority == "" {
		cp.Priority = "medium"
	}
	// 状態はバックエンドが初期化する
	cp.Status = ""

	var created model.Complaint
	if err := c.submit(ctx, "create-complaint", http.MethodPost, complaintsPath, cp, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateComplaintStatus は苦情の対応状況を変更する。管理者のみ許可される。
func (c *Client) UpdateComplaintStatus(ctx context.Context, id string, status model.ComplaintStatus) (*model.Complaint, error) {
	if id == "" {
		return nil, model.ErrResourceIDRequired
	}
	if !status.Valid() {
		return nil, model.ErrInvalidStatus
	}

	body := struct {
		Status model.ComplaintStatus `json:"status"`
	}{Status: status}

	var updated model.Complaint
	if err := c.submit(ctx, "complaint-status:"+id, http.MethodPatch, resourcePath(complaintsPath, id)+"/status", body, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}
