package app

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/hitoshi/campuslink/internal/model"
	"github.com/hitoshi/campuslink/internal/portal"
)

// renderNotice は空の一覧に対する案内文を表示する。表示した場合はtrue。
func renderNotice[T any](w io.Writer, list *portal.List[T]) bool {
	if len(list.Items) > 0 {
		return false
	}
	if list.Notice != nil {
		fmt.Fprintln(w, list.Notice.Message)
	} else {
		fmt.Fprintln(w, "Nothing matched.")
	}
	return true
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func authorName(a *model.Author) string {
	if a == nil || a.Name == "" {
		return "-"
	}
	return a.Name
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func renderAnnouncements(w io.Writer, list *portal.List[model.Announcement]) error {
	if renderNotice(w, list) {
		return nil
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tCATEGORY\tTITLE\tBY\tDATE")
	for _, a := range list.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", a.ID, dash(a.Category), a.Title, authorName(a.CreatedBy), formatDate(a.CreatedAt))
	}
	return tw.Flush()
}

func renderComplaints(w io.Writer, list *portal.List[model.Complaint]) error {
	if renderNotice(w, list) {
		return nil
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tSTATUS\tPRIORITY\tTITLE\tLOCATION")
	for _, c := range list.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", c.ID, dash(string(c.Status)), dash(c.Priority), c.Title, c.Location)
	}
	return tw.Flush()
}

func renderLostFound(w io.Writer, list *portal.List[model.LostFoundItem]) error {
	if renderNotice(w, list) {
		return nil
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tSTATUS\tTYPE\tTITLE\tLOCATION\tCONTACT")
	for _, i := range list.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", i.ID, i.Status, dash(i.ItemType), i.Title, i.Location, dash(i.ContactInfo))
	}
	return tw.Flush()
}

func renderTimetable(w io.Writer, list *portal.List[model.TimetableEntry]) error {
	if renderNotice(w, list) {
		return nil
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tDAY\tPERIOD\tCOURSE\tINSTRUCTOR\tROOM")
	for _, e := range list.Items {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n", e.ID, e.Day, e.Period, e.CourseName, e.Instructor, e.Room)
	}
	return tw.Flush()
}

// renderPolls は各アンケートと番号付きの選択肢を表示する。
// userIDが投票済みのアンケートには印を付ける。
func renderPolls(w io.Writer, list *portal.List[model.Poll], userID string) error {
	if renderNotice(w, list) {
		return nil
	}
	for _, p := range list.Items {
		var tags []string
		if p.HasVoted(userID) {
			tags = append(tags, "voted")
		}
		if p.AllowMultipleVotes {
			tags = append(tags, "multiple")
		}
		if p.EndDate != "" {
			tags = append(tags, "ends "+p.EndDate)
		}
		suffix := ""
		if len(tags) > 0 {
			suffix = " [" + strings.Join(tags, ", ") + "]"
		}
		fmt.Fprintf(w, "%s  %s (%s)%s\n", p.ID, p.Question, p.Category, suffix)
		for i, o := range p.Options {
			fmt.Fprintf(w, "  %d. %s (%d)\n", i+1, o.Text, len(o.Votes))
		}
	}
	return nil
}

func renderPollResults(w io.Writer, res *model.PollResults) error {
	fmt.Fprintf(w, "%s (%d votes)\n", res.Question, res.TotalVotes)
	tw := newTable(w)
	for i, r := range res.Results {
		fmt.Fprintf(tw, "  %d.\t%s\t%d\t%d%%\n", i+1, r.Text, r.Votes, r.Percentage)
	}
	return tw.Flush()
}

func renderTechNews(w io.Writer, list *portal.List[model.TechNews]) error {
	if renderNotice(w, list) {
		return nil
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tTYPE\tPRIORITY\tTITLE\tLINK")
	for _, n := range list.Items {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", n.ID, n.Type, n.Priority, n.Title, dash(n.Link))
	}
	return tw.Flush()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}
