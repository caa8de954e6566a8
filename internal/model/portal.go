package model

import "time"

// Author は投稿者の要約情報。
// バックエンドは作成者をポピュレートした形で返す。
type Author struct {
	ID   string `json:"_id,omitempty"`
	Name string `json:"name,omitempty"`
}

// Announcement はお知らせ。
type Announcement struct {
	ID          string    `json:"_id,omitempty"`
	Title       string    `json:"title"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	CreatedBy   *Author   `json:"createdBy,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitzero"`
}

// ComplaintStatus は苦情の対応状況。
type ComplaintStatus string

const (
	ComplaintPending    ComplaintStatus = "pending"
	ComplaintInProgress ComplaintStatus = "in-progress"
	ComplaintResolved   ComplaintStatus = "resolved"
)

// Valid は既知の状態かを返す。
func (s ComplaintStatus) Valid() bool {
	switch s {
	case ComplaintPending, ComplaintInProgress, ComplaintResolved:
		return true
	}
	return false
}

// Complaint は施設などに関する苦情。
type Complaint struct {
	ID          string          `json:"_id,omitempty"`
	Title       string          `json:"title"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Location    string          `json:"location"`
	Priority    string          `json:"priority"`
	Status      ComplaintStatus `json:"status,omitempty"`
	CreatedBy   *Author         `json:"createdBy,omitempty"`
	CreatedAt   time.Time       `json:"createdAt,omitzero"`
}

// LostFoundItem は落とし物・拾得物の掲示。
type LostFoundItem struct {
	ID          string    `json:"_id,omitempty"`
	ItemType    string    `json:"itemType"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	ContactInfo string    `json:"contactInfo"`
	Status      string    `json:"status"` // lost / found / claimed
	PostedBy    *Author   `json:"postedBy,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitzero"`
}

// TimetableEntry は時間割の1コマ。
type TimetableEntry struct {
	ID         string `json:"_id,omitempty"`
	CourseName string `json:"courseName"`
	Instructor string `json:"instructor"`
	Day        string `json:"day"`
	Period     int    `json:"period"`
	Room       string `json:"room"`
}

// PollVote は投票1件。
type PollVote struct {
	User string `json:"user"`
}

// PollOption は投票の選択肢。
type PollOption struct {
	Text  string     `json:"text"`
	Votes []PollVote `json:"votes"`
}

// Poll はアンケート。
type Poll struct {
	ID                 string       `json:"_id,omitempty"`
	Question           string       `json:"question"`
	Description        string       `json:"description,omitempty"`
	Options            []PollOption `json:"options"`
	AllowMultipleVotes bool         `json:"allowMultipleVotes"`
	EndDate            string       `json:"endDate,omitempty"`
	Category           string       `json:"category"`
	CreatedBy          *Author      `json:"createdBy,omitempty"`
	CreatedAt          time.Time    `json:"createdAt,omitzero"`
}

// TotalVotes は全選択肢の投票数の合計を返す。
func (p *Poll) TotalVotes() int {
	total := 0
	for _, o := range p.Options {
		total += len(o.Votes)
	}
	return total
}

// HasVoted は指定ユーザーが既に投票済みかを返す。
func (p *Poll) HasVoted(userID string) bool {
	for _, o := range p.Options {
		for _, v := range o.Votes {
			if v.User == userID {
				return true
			}
		}
	}
	return false
}

// Ended は締切日時を過ぎているかを返す。締切がない場合や解釈できない場合はfalse。
func (p *Poll) Ended(now time.Time) bool {
	if p.EndDate == "" {
		return false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"} {
		if end, err := time.Parse(layout, p.EndDate); err == nil {
			return now.After(end)
		}
	}
	return false
}

// NewPollRequest はアンケート作成リクエスト。
// 選択肢はテキストのみで送信する。
type NewPollRequest struct {
	Question           string   `json:"question"`
	Description        string   `json:"description"`
	Options            []string `json:"options"`
	AllowMultipleVotes bool     `json:"allowMultipleVotes"`
	EndDate            *string  `json:"endDate"`
	Category           string   `json:"category"`
}

// PollOptionResult は集計結果の1行。
type PollOptionResult struct {
	Text       string `json:"text"`
	Votes      int    `json:"votes"`
	Percentage int    `json:"percentage"`
}

// PollResults はアンケートの集計結果。
type PollResults struct {
	PollID     string             `json:"pollId"`
	Question   string             `json:"question"`
	TotalVotes int                `json:"totalVotes"`
	Results    []PollOptionResult `json:"results"`
}

// TechNews は技術ニュース・イベント情報。
type TechNews struct {
	ID          string    `json:"_id,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Type        string    `json:"type"`
	Link        string    `json:"link,omitempty"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	Priority    int       `json:"priority"`
	CreatedAt   time.Time `json:"createdAt,omitzero"`
}

// AuthResponse は /api/auth/login および /api/auth/signup のレスポンス。
type AuthResponse struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Role    string `json:"role"`
	Token   string `json:"token"`
	Message string `json:"message,omitempty"`
}
