package portal

import (
	"context"
	"net/http"
	"strings"

	"github.com/hitoshi/campuslink/internal/model"
)

const timetablePath = "/api/timetable"

// Timetable は時間割を取得する。
func (c *Client) Timetable(ctx context.Context) (*List[model.TimetableEntry], error) {
	return fetchList[model.TimetableEntry](ctx, c.gw, timetablePath, "classes")
}

// CreateTimetableEntry は時間割にコマを追加する。科目名・担当者・教室は必須。
func (c *Client) CreateTimetableEntry(ctx context.Context, e model.TimetableEntry) (*model.TimetableEntry, error) {
	if err := normalizeTimetable(&e); err != nil {
		return nil, err
	}

	var created model.TimetableEntry
	if err := c.submit(ctx, "create-timetable", http.MethodPost, timetablePath, e, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateTimetableEntry はコマを更新する。
func (c *Client) UpdateTimetableEntry(ctx context.Context, id string, e model.TimetableEntry) (*model.TimetableEntry, error) {
	if id == "" {
		return nil, model.ErrResourceIDRequired
	}
	if err := normalizeTimetable(&e); err != nil {
		return nil, err
	}

	var updated model.TimetableEntry
	if err := c.submit(ctx, "update-timetable:"+id, http.MethodPut, resourcePath(timetablePath, id), e, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteTimetableEntry はコマを削除する。
func (c *Client) DeleteTimetableEntry(ctx context.Context, id string) error {
	if id == "" {
		return model.ErrResourceIDRequired
	}
	return deleteResource(ctx, c, "delete-timetable", timetablePath, id)
}

func normalizeTimetable(e *model.TimetableEntry) error {
	e.CourseName = strings.TrimSpace(e.CourseName)
	e.Instructor = strings.TrimSpace(e.Instructor)
	e.Room = strings.TrimSpace(e.Room)
	if e.CourseName == "" || e.Instructor == "" || e.Room == "" {
		return model.ErrFieldsRequired
	}
	if e.Day == "" {
		e.Day = "monday"
	}
	if e.Period <= 0 {
		e.Period = 1
	}
	return nil
}
