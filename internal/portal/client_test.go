package portal

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/campuslink/internal/gateway"
	"github.com/hitoshi/campuslink/internal/model"
)

// --- モック定義 ---

type call struct {
	method, path string
	body         any
}

type mockRequester struct {
	calls     []call
	doFn      func(method, path string, body any) (any, error)
	getListFn func(path, noun string) (gateway.ListResult, error)
}

func (m *mockRequester) Do(ctx context.Context, method, path string, body, out any) error {
	m.calls = append(m.calls, call{method, path, body})
	if m.doFn == nil {
		return nil
	}
	resp, err := m.doFn(method, path, body)
	if err != nil {
		return err
	}
	if out != nil && resp != nil {
		encoded, _ := json.Marshal(resp)
		return json.Unmarshal(encoded, out)
	}
	return nil
}

func (m *mockRequester) GetList(ctx context.Context, path, noun string) (gateway.ListResult, error) {
	m.calls = append(m.calls, call{http.MethodGet, path, nil})
	return m.getListFn(path, noun)
}

func newTestClient(gw Requester) *Client {
	return NewClient(gw, slog.New(slog.NewJSONHandler(io.Discard, nil)))
}

func listOf(t *testing.T, payload, noun string) gateway.ListResult {
	t.Helper()
	r, err := gateway.NormalizeListResponse([]byte(payload), noun)
	if err != nil {
		t.Fatalf("NormalizeListResponse: %v", err)
	}
	return r
}

// --- 一覧 ---

func TestAnnouncements_DecodesItems(t *testing.T) {
	gw := &mockRequester{getListFn: func(path, noun string) (gateway.ListResult, error) {
		if path != "/api/announcements/getann" || noun != "announcements" {
			t.Errorf("path = %q, noun = %q", path, noun)
		}
		return listOf(t, `[{"_id":"a1","title":"Exam week","category":"exam","description":"..."}]`, noun), nil
	}}

	list, err := newTestClient(gw).Announcements(context.Background())
	if err != nil {
		t.Fatalf("Announcements returned error: %v", err)
	}
	if len(list.Items) != 1 || list.Items[0].Title != "Exam week" {
		t.Errorf("items = %+v", list.Items)
	}
	if list.Notice != nil {
		t.Errorf("Notice = %+v, want nil", list.Notice)
	}
}

func TestTimetable_EmptyNotice(t *testing.T) {
	gw := &mockRequester{getListFn: func(path, noun string) (gateway.ListResult, error) {
		return listOf(t, `[]`, noun), nil
	}}

	list, err := newTestClient(gw).Timetable(context.Background())
	if err != nil {
		t.Fatalf("Timetable returned error: %v", err)
	}
	if list.Notice == nil || list.Notice.Message != "No classes found. Be the first to add one!" {
		t.Errorf("Notice = %+v", list.Notice)
	}
}

func TestPolls_CategoryPath(t *testing.T) {
	var paths []string
	gw := &mockRequester{getListFn: func(path, noun string) (gateway.ListResult, error) {
		paths = append(paths, path)
		return listOf(t, `[]`, noun), nil
	}}
	c := newTestClient(gw)

	_, _ = c.Polls(context.Background(), "")
	_, _ = c.Polls(context.Background(), "all")
	_, _ = c.Polls(context.Background(), "academic")

	want := []string{"/api/polls", "/api/polls", "/api/polls/category/academic"}
	for i, p := range want {
		if paths[i] != p {
			t.Errorf("paths[%d] = %q, want %q", i, paths[i], p)
		}
	}
}

func TestTechNews_TypePathAndNoun(t *testing.T) {
	gw := &mockRequester{getListFn: func(path, noun string) (gateway.ListResult, error) {
		if path != "/api/tech-news/type/hackathon" {
			t.Errorf("path = %q", path)
		}
		return listOf(t, `[]`, noun), nil
	}}

	list, err := newTestClient(gw).TechNews(context.Background(), "hackathon")
	if err != nil {
		t.Fatalf("TechNews returned error: %v", err)
	}
	if list.Notice.Message != "No tech news found. Be the first to add one!" {
		t.Errorf("Notice = %q", list.Notice.Message)
	}
}

func TestList_PropagatesClassifiedError(t *testing.T) {
	gw := &mockRequester{getListFn: func(path, noun string) (gateway.ListResult, error) {
		return gateway.ListResult{}, &gateway.Error{Classification: gateway.Classification{Kind: gateway.KindForbidden, Message: gateway.MsgForbidden}}
	}}

	_, err := newTestClient(gw).Complaints(context.Background())
	if kind, _ := gateway.KindOf(err); kind != gateway.KindForbidden {
		t.Errorf("kind = %v, want forbidden", kind)
	}
}

// --- 入力検証 ---

func TestCreateComplaint_RequiresFields(t *testing.T) {
	gw := &mockRequester{}
	_, err := newTestClient(gw).CreateComplaint(context.Background(), model.Complaint{Title: "AC", Description: "  ", Location: "Room 1"})
	if !errors.Is(err, model.ErrFieldsRequired) {
		t.Errorf("error = %v, want ErrFieldsRequired", err)
	}
	if len(gw.calls) != 0 {
		t.Error("invalid input must not be sent")
	}
}

func TestCreateComplaint_TrimsAndDefaults(t *testing.T) {
	gw := &mockRequester{doFn: func(method, path string, body any) (any, error) {
		cp := body.(model.Complaint)
		cp.ID = "c1"
		cp.Status = model.ComplaintPending
		return cp, nil
	}}

	created, err := newTestClient(gw).CreateComplaint(context.Background(), model.Complaint{
		Title: " Broken AC ", Description: "No cooling", Location: "Lab 2", Status: model.ComplaintResolved,
	})
	if err != nil {
		t.Fatalf("CreateComplaint returned error: %v", err)
	}
	sent := gw.calls[0].body.(model.Complaint)
	if sent.Title != "Broken AC" || sent.Priority != "medium" || sent.Status != "" {
		t.Errorf("sent = %+v", sent)
	}
	if gw.calls[0].method != http.MethodPost || gw.calls[0].path != "/api/complaints" {
		t.Errorf("call = %+v", gw.calls[0])
	}
	if created.ID != "c1" || created.Status != model.ComplaintPending {
		t.Errorf("created = %+v", created)
	}
}

func TestUpdateComplaintStatus(t *testing.T) {
	gw := &mockRequester{}
	c := newTestClient(gw)

	if _, err := c.UpdateComplaintStatus(context.Background(), "c1", "closed"); !errors.Is(err, model.ErrInvalidStatus) {
		t.Errorf("error = %v, want ErrInvalidStatus", err)
	}
	if _, err := c.UpdateComplaintStatus(context.Background(), "", model.ComplaintResolved); !errors.Is(err, model.ErrResourceIDRequired) {
		t.Errorf("error = %v, want ErrResourceIDRequired", err)
	}
	if _, err := c.UpdateComplaintStatus(context.Background(), "c1", model.ComplaintInProgress); err != nil {
		t.Fatalf("UpdateComplaintStatus returned error: %v", err)
	}

	if len(gw.calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(gw.calls))
	}
	if gw.calls[0].method != http.MethodPatch || gw.calls[0].path != "/api/complaints/c1/status" {
		t.Errorf("call = %+v", gw.calls[0])
	}
	encoded, _ := json.Marshal(gw.calls[0].body)
	if string(encoded) != `{"status":"in-progress"}` {
		t.Errorf("body = %s", encoded)
	}
}

func TestCreatePoll_Validation(t *testing.T) {
	gw := &mockRequester{}
	c := newTestClient(gw)

	cases := []model.NewPollRequest{
		{Question: "", Options: []string{"A", "B"}},
		{Question: "Lunch?", Options: []string{"A", "  "}},
		{Question: "Lunch?", Options: nil},
	}
	for _, req := range cases {
		if _, err := c.CreatePoll(context.Background(), req); !errors.Is(err, model.ErrPollQuestionRequired) {
			t.Errorf("CreatePoll(%+v) error = %v", req, err)
		}
	}
	if len(gw.calls) != 0 {
		t.Error("invalid polls must not be sent")
	}
}

func TestCreatePoll_DropsBlankOptions(t *testing.T) {
	gw := &mockRequester{}
	empty := ""

	_, err := newTestClient(gw).CreatePoll(context.Background(), model.NewPollRequest{
		Question: " Lunch? ", Options: []string{"Pizza", "", "Sushi", " "}, EndDate: &empty,
	})
	if err != nil {
		t.Fatalf("CreatePoll returned error: %v", err)
	}

	sent := gw.calls[0].body.(model.NewPollRequest)
	if sent.Question != "Lunch?" || len(sent.Options) != 2 || sent.Options[1] != "Sushi" {
		t.Errorf("sent = %+v", sent)
	}
	if sent.EndDate != nil || sent.Category != "general" {
		t.Errorf("sent defaults = %+v", sent)
	}
}

func TestVote_SendsOptionIndex(t *testing.T) {
	gw := &mockRequester{doFn: func(method, path string, body any) (any, error) {
		return model.Poll{ID: "p1", Options: []model.PollOption{{Text: "A", Votes: []model.PollVote{{User: "u1"}}}}}, nil
	}}

	poll, err := newTestClient(gw).Vote(context.Background(), "p1", 0)
	if err != nil {
		t.Fatalf("Vote returned error: %v", err)
	}
	if gw.calls[0].path != "/api/polls/p1/vote" {
		t.Errorf("path = %q", gw.calls[0].path)
	}
	encoded, _ := json.Marshal(gw.calls[0].body)
	if string(encoded) != `{"optionIndex":0}` {
		t.Errorf("body = %s", encoded)
	}
	if !poll.HasVoted("u1") {
		t.Error("updated poll should include the vote")
	}
}

func TestDeleteLostFound_EscapesID(t *testing.T) {
	gw := &mockRequester{}
	if err := newTestClient(gw).DeleteLostFound(context.Background(), "a/b"); err != nil {
		t.Fatalf("DeleteLostFound returned error: %v", err)
	}
	if gw.calls[0].method != http.MethodDelete || gw.calls[0].path != "/api/lost-found/a%2Fb" {
		t.Errorf("call = %+v", gw.calls[0])
	}
}

func TestCreateTimetableEntry_Validation(t *testing.T) {
	gw := &mockRequester{}
	c := newTestClient(gw)

	if _, err := c.CreateTimetableEntry(context.Background(), model.TimetableEntry{CourseName: "Math"}); !errors.Is(err, model.ErrFieldsRequired) {
		t.Errorf("error = %v, want ErrFieldsRequired", err)
	}
	if _, err := c.CreateTimetableEntry(context.Background(), model.TimetableEntry{CourseName: "Math", Instructor: "Dr. K", Room: "B12"}); err != nil {
		t.Fatalf("CreateTimetableEntry returned error: %v", err)
	}
	sent := gw.calls[0].body.(model.TimetableEntry)
	if sent.Day != "monday" || sent.Period != 1 {
		t.Errorf("defaults = %+v", sent)
	}
}

func TestSubmit_InFlightRejected(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	gw := &mockRequester{doFn: func(method, path string, body any) (any, error) {
		close(started)
		<-release
		return nil, nil
	}}
	c := newTestClient(gw)

	done := make(chan error, 1)
	go func() {
		_, err := c.Vote(context.Background(), "p1", 1)
		done <- err
	}()
	<-started

	if !c.Action("vote:p1").InFlight() {
		t.Error("vote:p1 should be in flight")
	}
	if _, err := c.Vote(context.Background(), "p1", 0); !errors.Is(err, ErrInFlight) {
		t.Errorf("second vote error = %v, want ErrInFlight", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Errorf("first vote error = %v", err)
	}
}

func TestFilterLostFound(t *testing.T) {
	items := []model.LostFoundItem{
		{Title: "Blue umbrella", Description: "left in hall", Location: "Library", ItemType: "accessories", Status: "lost"},
		{Title: "Wallet", Description: "brown leather", Location: "Cafeteria", ItemType: "accessories", Status: "found"},
		{Title: "Laptop charger", Description: "USB-C", Location: "Lab 3", ItemType: "electronics", Status: "lost"},
	}

	if got := FilterLostFound(items, LostFoundFilter{}); len(got) != 3 {
		t.Errorf("no filter = %d, want 3", len(got))
	}
	if got := FilterLostFound(items, LostFoundFilter{ItemType: "accessories", Status: "all"}); len(got) != 2 {
		t.Errorf("accessories = %d, want 2", len(got))
	}
	if got := FilterLostFound(items, LostFoundFilter{Status: "lost", Search: "LAB"}); len(got) != 1 || got[0].Title != "Laptop charger" {
		t.Errorf("lost+LAB = %+v", got)
	}
	if got := FilterLostFound(items, LostFoundFilter{Search: "library"}); len(got) != 1 {
		t.Errorf("library = %d, want 1", len(got))
	}
}

// TestClient_WithGateway は実際のGateway経由でリクエストが送られることを検証する。
func TestClient_WithGateway(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok123456" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/api/polls/p1/results":
			_, _ = w.Write([]byte(`{"pollId":"p1","question":"Lunch?","totalVotes":4,"results":[{"text":"A","votes":3,"percentage":75},{"text":"B","votes":1,"percentage":25}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	gw := gateway.New(srv.URL, srv.Client(), staticSession("tok123456"), nil, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	c := newTestClient(gw)

	results, err := c.PollResults(context.Background(), "p1")
	if err != nil {
		t.Fatalf("PollResults returned error: %v", err)
	}
	if results.TotalVotes != 4 || results.Results[0].Percentage != 75 {
		t.Errorf("results = %+v", results)
	}

	err = c.DeleteTechNews(context.Background(), "n1")
	if kind, _ := gateway.KindOf(err); kind != gateway.KindNotFound {
		t.Errorf("kind = %v, want not_found", kind)
	}
}

type staticSession string

func (s staticSession) Credential() string { return string(s) }

func (s staticSession) InvalidateCredential(ctx context.Context, credential string) (bool, error) {
	return false, nil
}
