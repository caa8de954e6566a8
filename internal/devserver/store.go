package devserver

import (
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/campuslink/internal/model"
)

// ストアのエラー。
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// User はバックエンドのユーザーレコード。
type User struct {
	ID    string
	Email string
	Name  string
	Role  model.Role
}

// Store は開発用バックエンドの全リソースをメモリ上に保持する。
// 一覧は新しいものから順に返す。
type Store struct {
	mu  sync.RWMutex
	now func() time.Time

	users         map[string]*User // email（小文字）→ユーザー
	announcements []model.Announcement
	complaints    []model.Complaint
	lostFound     []model.LostFoundItem
	timetable     []model.TimetableEntry
	polls         []model.Poll
	techNews      []model.TechNews
}

// NewStore は空のStoreを生成する。
func NewStore() *Store {
	return &Store{
		now:   time.Now,
		users: make(map[string]*User),
	}
}

func newID() string {
	return uuid.NewString()
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateUser はユーザーを登録する。同じメールアドレスが登録済みの場合はErrAlreadyExists。
func (s *Store) CreateUser(email, name string, role model.Role) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := emailKey(email)
	if _, ok := s.users[key]; ok {
		return nil, ErrAlreadyExists
	}
	u := &User{ID: newID(), Email: strings.TrimSpace(email), Name: name, Role: role}
	s.users[key] = u
	cp := *u
	return &cp, nil
}

// UserByEmail はメールアドレスでユーザーを検索する。
func (s *Store) UserByEmail(email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[emailKey(email)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// prepend は要素を先頭に追加した新しいスライスを返す。
func prepend[T any](items []T, v T) []T {
	return append([]T{v}, items...)
}

// removeByID はidに一致する要素を取り除く。見つからない場合はfalse。
func removeByID[T any](items []T, id string, idOf func(*T) string) ([]T, bool) {
	i := slices.IndexFunc(items, func(v T) bool { return idOf(&v) == id })
	if i < 0 {
		return items, false
	}
	return slices.Delete(items, i, i+1), true
}

// findByID はidに一致する要素へのポインタを返す。
func findByID[T any](items []T, id string, idOf func(*T) string) *T {
	for i := range items {
		if idOf(&items[i]) == id {
			return &items[i]
		}
	}
	return nil
}

// --- Announcements ---

func (s *Store) Announcements() []model.Announcement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.announcements)
}

func (s *Store) AddAnnouncement(a model.Announcement) model.Announcement {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = newID()
	a.CreatedAt = s.now()
	s.announcements = prepend(s.announcements, a)
	return a
}

// --- Complaints ---

func (s *Store) Complaints() []model.Complaint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.complaints)
}

func (s *Store) AddComplaint(c model.Complaint) model.Complaint {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = newID()
	c.Status = model.ComplaintPending
	c.CreatedAt = s.now()
	s.complaints = prepend(s.complaints, c)
	return c
}

func (s *Store) SetComplaintStatus(id string, status model.ComplaintStatus) (model.Complaint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := findByID(s.complaints, id, func(c *model.Complaint) string { return c.ID })
	if c == nil {
		return model.Complaint{}, ErrNotFound
	}
	c.Status = status
	return *c, nil
}

// --- Lost & Found ---

func (s *Store) LostFound() []model.LostFoundItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.lostFound)
}

func (s *Store) AddLostFound(item model.LostFoundItem) model.LostFoundItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	item.ID = newID()
	item.CreatedAt = s.now()
	s.lostFound = prepend(s.lostFound, item)
	return item
}

// UpdateLostFound は投稿者本人または管理者のみ更新できる。
func (s *Store) UpdateLostFound(id string, in model.LostFoundItem, by *model.Principal) (model.LostFoundItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item := findByID(s.lostFound, id, func(v *model.LostFoundItem) string { return v.ID })
	if item == nil {
		return model.LostFoundItem{}, ErrNotFound
	}
	if !ownedBy(item.PostedBy, by) {
		return model.LostFoundItem{}, errForbidden
	}
	in.ID, in.PostedBy, in.CreatedAt = item.ID, item.PostedBy, item.CreatedAt
	*item = in
	return in, nil
}

func (s *Store) DeleteLostFound(id string, by *model.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item := findByID(s.lostFound, id, func(v *model.LostFoundItem) string { return v.ID })
	if item == nil {
		return ErrNotFound
	}
	if !ownedBy(item.PostedBy, by) {
		return errForbidden
	}
	s.lostFound, _ = removeByID(s.lostFound, id, func(v *model.LostFoundItem) string { return v.ID })
	return nil
}

var errForbidden = errors.New("forbidden")

func ownedBy(author *model.Author, p *model.Principal) bool {
	if p.IsAdmin() {
		return true
	}
	return author != nil && author.ID == p.ID
}

// --- Timetable ---

func (s *Store) Timetable() []model.TimetableEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.timetable)
}

func (s *Store) AddTimetable(e model.TimetableEntry) model.TimetableEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = newID()
	s.timetable = append(s.timetable, e)
	return e
}

func (s *Store) UpdateTimetable(id string, in model.TimetableEntry) (model.TimetableEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := findByID(s.timetable, id, func(v *model.TimetableEntry) string { return v.ID })
	if e == nil {
		return model.TimetableEntry{}, ErrNotFound
	}
	in.ID = e.ID
	*e = in
	return in, nil
}

func (s *Store) DeleteTimetable(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ok bool
	s.timetable, ok = removeByID(s.timetable, id, func(v *model.TimetableEntry) string { return v.ID })
	if !ok {
		return ErrNotFound
	}
	return nil
}

// --- Polls ---

// Polls はアンケート一覧を返す。categoryが空でない場合はそのカテゴリのみ。
func (s *Store) Polls(category string) []model.Poll {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Poll, 0, len(s.polls))
	for _, p := range s.polls {
		if category == "" || p.Category == category {
			out = append(out, clonePoll(p))
		}
	}
	return out
}

func clonePoll(p model.Poll) model.Poll {
	opts := make([]model.PollOption, len(p.Options))
	for i, o := range p.Options {
		opts[i] = model.PollOption{Text: o.Text, Votes: slices.Clone(o.Votes)}
		if opts[i].Votes == nil {
			opts[i].Votes = []model.PollVote{}
		}
	}
	p.Options = opts
	return p
}

func (s *Store) AddPoll(p model.Poll) model.Poll {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = newID()
	p.CreatedAt = s.now()
	s.polls = prepend(s.polls, p)
	return clonePoll(p)
}

// 投票のエラー。
var (
	errAlreadyVoted  = errors.New("You have already voted on this poll")
	errPollEnded     = errors.New("This poll has ended")
	errInvalidOption = errors.New("Invalid option")
)

// Vote は投票を記録する。複数投票が許可されていないアンケートでは1ユーザー1票。
func (s *Store) Vote(pollID, userID string, optionIndex int) (model.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := findByID(s.polls, pollID, func(v *model.Poll) string { return v.ID })
	if p == nil {
		return model.Poll{}, ErrNotFound
	}
	if p.Ended(s.now()) {
		return model.Poll{}, errPollEnded
	}
	if optionIndex < 0 || optionIndex >= len(p.Options) {
		return model.Poll{}, errInvalidOption
	}
	if !p.AllowMultipleVotes && p.HasVoted(userID) {
		return model.Poll{}, errAlreadyVoted
	}
	p.Options[optionIndex].Votes = append(p.Options[optionIndex].Votes, model.PollVote{User: userID})
	return clonePoll(*p), nil
}

// PollResults は選択肢ごとの得票数と割合（整数に丸めたパーセント）を返す。
func (s *Store) PollResults(pollID string) (model.PollResults, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p := findByID(s.polls, pollID, func(v *model.Poll) string { return v.ID })
	if p == nil {
		return model.PollResults{}, ErrNotFound
	}
	total := p.TotalVotes()
	res := model.PollResults{PollID: p.ID, Question: p.Question, TotalVotes: total}
	for _, o := range p.Options {
		r := model.PollOptionResult{Text: o.Text, Votes: len(o.Votes)}
		if total > 0 {
			r.Percentage = (r.Votes*100 + total/2) / total
		}
		res.Results = append(res.Results, r)
	}
	return res, nil
}

func (s *Store) DeletePoll(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ok bool
	s.polls, ok = removeByID(s.polls, id, func(v *model.Poll) string { return v.ID })
	if !ok {
		return ErrNotFound
	}
	return nil
}

// --- Tech news ---

// TechNews はニュース一覧を優先度の高い順、同順位は新しい順で返す。
func (s *Store) TechNews(newsType string) []model.TechNews {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.TechNews, 0, len(s.techNews))
	for _, n := range s.techNews {
		if newsType == "" || n.Type == newsType {
			out = append(out, n)
		}
	}
	slices.SortStableFunc(out, func(a, b model.TechNews) int {
		return b.Priority - a.Priority
	})
	return out
}

func (s *Store) AddTechNews(n model.TechNews) model.TechNews {
	s.mu.Lock()
	defer s.mu.Unlock()
	n.ID = newID()
	n.CreatedAt = s.now()
	s.techNews = prepend(s.techNews, n)
	return n
}

func (s *Store) DeleteTechNews(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ok bool
	s.techNews, ok = removeByID(s.techNews, id, func(v *model.TechNews) string { return v.ID })
	if !ok {
		return ErrNotFound
	}
	return nil
}
