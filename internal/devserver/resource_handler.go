package devserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/campuslink/internal/middleware"
	"github.com/hitoshi/campuslink/internal/model"
	"github.com/hitoshi/campuslink/internal/security"
)

// maxRequestBody はリクエストボディの最大サイズ（1MB）。
const maxRequestBody = 1 << 20

// ResourceHandler はポータルの各リソースを処理する。
// 文字列入力はすべてプレーンテキストに正規化してから保存する。
type ResourceHandler struct {
	store     *Store
	sanitizer *security.TextSanitizer
	logger    *slog.Logger
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(v); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// writeList は一覧を常にJSON配列として書き込む。
func writeList[T any](w http.ResponseWriter, items []T) {
	if items == nil {
		items = []T{}
	}
	middleware.WriteJSON(w, http.StatusOK, items)
}

func (h *ResourceHandler) clean(s string) string {
	return h.sanitizer.Text(s)
}

func author(r *http.Request) *model.Author {
	p, _ := middleware.PrincipalFromContext(r.Context())
	return &model.Author{ID: p.ID, Name: model.DeriveDisplayName(p)}
}

func principal(r *http.Request) *model.Principal {
	p, _ := middleware.PrincipalFromContext(r.Context())
	return p
}

// writeStoreError はストアのエラーをHTTPレスポンスに変換する。
func (h *ResourceHandler) writeStoreError(w http.ResponseWriter, noun string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		middleware.WriteError(w, http.StatusNotFound, noun+" not found")
	case errors.Is(err, errForbidden):
		middleware.WriteError(w, http.StatusForbidden, "Not authorized")
	case errors.Is(err, errAlreadyVoted), errors.Is(err, errPollEnded), errors.Is(err, errInvalidOption):
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("store operation failed", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
	}
}

// --- Announcements ---

func (h *ResourceHandler) ListAnnouncements(w http.ResponseWriter, r *http.Request) {
	writeList(w, h.store.Announcements())
}

func (h *ResourceHandler) CreateAnnouncement(w http.ResponseWriter, r *http.Request) {
	var in model.Announcement
	if !decodeBody(w, r, &in) {
		return
	}
	in.Title, in.Description, in.Category = h.clean(in.Title), h.clean(in.Description), h.clean(in.Category)
	if in.Title == "" || in.Description == "" {
		middleware.WriteError(w, http.StatusBadRequest, model.ErrFieldsRequired.Error())
		return
	}
	in.CreatedBy = author(r)
	middleware.WriteJSON(w, http.StatusCreated, h.store.AddAnnouncement(in))
}

// --- Complaints ---

func (h *ResourceHandler) ListComplaints(w http.ResponseWriter, r *http.Request) {
	writeList(w, h.store.Complaints())
}

func (h *ResourceHandler) CreateComplaint(w http.ResponseWriter, r *http.Request) {
	var in model.Complaint
	if !decodeBody(w, r, &in) {
		return
	}
	in.Title, in.Description, in.Location = h.clean(in.Title), h.clean(in.Description), h.clean(in.Location)
	in.Category, in.Priority = h.clean(in.Category), h.clean(in.Priority)
	if in.Title == "" || in.Description == "" || in.Location == "" {
		middleware.WriteError(w, http.StatusBadRequest, model.ErrFieldsRequired.Error())
		return
	}
	if in.Priority == "" {
		in.Priority = "medium"
	}
	in.CreatedBy = author(r)
	middleware.WriteJSON(w, http.StatusCreated, h.store.AddComplaint(in))
}

// UpdateComplaintStatus は管理者のみ。ルーター側でRequireAdminを適用する。
func (h *ResourceHandler) UpdateComplaintStatus(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Status model.ComplaintStatus `json:"status"`
	}
	if !decodeBody(w, r, &in) {
		return
	}
	if !in.Status.Valid() {
		middleware.WriteError(w, http.StatusBadRequest, model.ErrInvalidStatus.Error())
		return
	}
	updated, err := h.store.SetComplaintStatus(chi.URLParam(r, "id"), in.Status)
	if err != nil {
		h.writeStoreError(w, "Complaint", err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, updated)
}

// --- Lost & Found ---

func (h *ResourceHandler) ListLostFound(w http.ResponseWriter, r *http.Request) {
	writeList(w, h.store.LostFound())
}

func (h *ResourceHandler) decodeLostFound(w http.ResponseWriter, r *http.Request) (model.LostFoundItem, bool) {
	var in model.LostFoundItem
	if !decodeBody(w, r, &in) {
		return in, false
	}
	in.ItemType, in.Title, in.Description = h.clean(in.ItemType), h.clean(in.Title), h.clean(in.Description)
	in.Location, in.ContactInfo, in.Status = h.clean(in.Location), h.clean(in.ContactInfo), h.clean(in.Status)
	if in.Title == "" || in.Description == "" || in.Location == "" {
		middleware.WriteError(w, http.StatusBadRequest, model.ErrFieldsRequired.Error())
		return in, false
	}
	if in.Status == "" {
		in.Status = "lost"
	}
	return in, true
}

func (h *ResourceHandler) CreateLostFound(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeLostFound(w, r)
	if !ok {
		return
	}
	in.PostedBy = author(r)
	middleware.WriteJSON(w, http.StatusCreated, h.store.AddLostFound(in))
}

func (h *ResourceHandler) UpdateLostFound(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeLostFound(w, r)
	if !ok {
		return
	}
	updated, err := h.store.UpdateLostFound(chi.URLParam(r, "id"), in, principal(r))
	if err != nil {
		h.writeStoreError(w, "Item", err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, updated)
}

func (h *ResourceHandler) DeleteLostFound(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteLostFound(chi.URLParam(r, "id"), principal(r)); err != nil {
		h.writeStoreError(w, "Item", err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, model.ErrorBody{Message: "Item deleted"})
}

// --- Timetable ---

func (h *ResourceHandler) ListTimetable(w http.ResponseWriter, r *http.Request) {
	writeList(w, h.store.Timetable())
}

func (h *ResourceHandler) decodeTimetable(w http.ResponseWriter, r *http.Request) (model.TimetableEntry, bool) {
	var in model.TimetableEntry
	if !decodeBody(w, r, &in) {
		return in, false
	}
	in.CourseName, in.Instructor, in.Room = h.clean(in.CourseName), h.clean(in.Instructor), h.clean(in.Room)
	in.Day = strings.ToLower(h.clean(in.Day))
	if in.CourseName == "" || in.Instructor == "" || in.Room == "" || in.Day == "" {
		middleware.WriteError(w, http.StatusBadRequest, model.ErrFieldsRequired.Error())
		return in, false
	}
	if in.Period <= 0 {
		in.Period = 1
	}
	return in, true
}

func (h *ResourceHandler) CreateTimetable(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeTimetable(w, r)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, h.store.AddTimetable(in))
}

func (h *ResourceHandler) UpdateTimetable(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeTimetable(w, r)
	if !ok {
		return
	}
	updated, err := h.store.UpdateTimetable(chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeStoreError(w, "Class", err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, updated)
}

func (h *ResourceHandler) DeleteTimetable(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteTimetable(chi.URLParam(r, "id")); err != nil {
		h.writeStoreError(w, "Class", err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, model.ErrorBody{Message: "Class deleted"})
}

// --- Polls ---

func (h *ResourceHandler) ListPolls(w http.ResponseWriter, r *http.Request) {
	writeList(w, h.store.Polls(chi.URLParam(r, "category")))
}

func (h *ResourceHandler) CreatePoll(w http.ResponseWriter, r *http.Request) {
	var in model.NewPollRequest
	if !decodeBody(w, r, &in) {
		return
	}
	poll := model.Poll{
		Question:           h.clean(in.Question),
		Description:        h.clean(in.Description),
		AllowMultipleVotes: in.AllowMultipleVotes,
		Category:           h.clean(in.Category),
		CreatedBy:          author(r),
	}
	for _, o := range in.Options {
		if text := h.clean(o); text != "" {
			poll.Options = append(poll.Options, model.PollOption{Text: text, Votes: []model.PollVote{}})
		}
	}
	if poll.Question == "" || len(poll.Options) < 2 {
		middleware.WriteError(w, http.StatusBadRequest, model.ErrPollQuestionRequired.Error())
		return
	}
	if in.EndDate != nil {
		poll.EndDate = strings.TrimSpace(*in.EndDate)
	}
	if poll.Category == "" {
		poll.Category = "general"
	}
	middleware.WriteJSON(w, http.StatusCreated, h.store.AddPoll(poll))
}

func (h *ResourceHandler) Vote(w http.ResponseWriter, r *http.Request) {
	var in struct {
		OptionIndex *int `json:"optionIndex"`
	}
	if !decodeBody(w, r, &in) {
		return
	}
	if in.OptionIndex == nil {
		middleware.WriteError(w, http.StatusBadRequest, errInvalidOption.Error())
		return
	}
	updated, err := h.store.Vote(chi.URLParam(r, "id"), principal(r).ID, *in.OptionIndex)
	if err != nil {
		h.writeStoreError(w, "Poll", err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, updated)
}

func (h *ResourceHandler) PollResults(w http.ResponseWriter, r *http.Request) {
	res, err := h.store.PollResults(chi.URLParam(r, "id"))
	if err != nil {
		h.writeStoreError(w, "Poll", err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, res)
}

func (h *ResourceHandler) DeletePoll(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeletePoll(chi.URLParam(r, "id")); err != nil {
		h.writeStoreError(w, "Poll", err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, model.ErrorBody{Message: "Poll deleted"})
}

// --- Tech news ---

func (h *ResourceHandler) ListTechNews(w http.ResponseWriter, r *http.Request) {
	writeList(w, h.store.TechNews(chi.URLParam(r, "type")))
}

func (h *ResourceHandler) CreateTechNews(w http.ResponseWriter, r *http.Request) {
	var in model.TechNews
	if !decodeBody(w, r, &in) {
		return
	}
	in.Title, in.Description, in.Type = h.clean(in.Title), h.clean(in.Description), h.clean(in.Type)
	if in.Title == "" || in.Description == "" {
		middleware.WriteError(w, http.StatusBadRequest, model.ErrFieldsRequired.Error())
		return
	}
	if err := security.ValidateLink(in.Link); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid link")
		return
	}
	if err := security.ValidateLink(in.ImageURL); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid image URL")
		return
	}
	if in.Type == "" {
		in.Type = "tech_news"
	}
	middleware.WriteJSON(w, http.StatusCreated, h.store.AddTechNews(in))
}

func (h *ResourceHandler) DeleteTechNews(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteTechNews(chi.URLParam(r, "id")); err != nil {
		h.writeStoreError(w, "News", err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, model.ErrorBody{Message: "News deleted"})
}
