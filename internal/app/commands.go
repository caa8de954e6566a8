package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hitoshi/campuslink/internal/auth"
	"github.com/hitoshi/campuslink/internal/config"
	"github.com/hitoshi/campuslink/internal/model"
	"github.com/hitoshi/campuslink/internal/portal"
)

// リソース名。list/create/deleteの第1引数に使う。
const (
	resourceAnnouncements = "announcements"
	resourceComplaints    = "complaints"
	resourceLostFound     = "lost-found"
	resourceTimetable     = "timetable"
	resourcePolls         = "polls"
	resourceTechNews      = "tech-news"
)

var (
	listableResources  = []string{resourceAnnouncements, resourceComplaints, resourceLostFound, resourceTimetable, resourcePolls, resourceTechNews}
	deletableResources = []string{resourceLostFound, resourceTimetable, resourcePolls, resourceTechNews}
)

// cli はコマンド間で共有する実行環境。
type cli struct {
	env *Env
}

// NewRootCommand はcampuslinkのコマンドツリーを構築する。
func NewRootCommand(env *Env) *cobra.Command {
	c := &cli{env: env}

	root := &cobra.Command{
		Use:           "campuslink",
		Short:         "CampusLink campus portal client",
		Long:          "CampusLink is a command-line client for the campus portal: announcements, complaints, lost & found, timetable, polls and tech news.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(env.Out)
	root.SetErr(env.LogOut)

	root.AddCommand(
		c.loginCmd(),
		c.signupCmd(),
		c.logoutCmd(),
		c.whoamiCmd(),
		c.listCmd(),
		c.createCmd(),
		c.deleteCmd(),
		c.voteCmd(),
		c.resultsCmd(),
		c.complaintStatusCmd(),
		c.importNewsCmd(),
		c.migrateCmd(),
		c.devserverCmd(),
	)
	return root
}

// withClient は設定読み込み・セッションのハイドレートを済ませてからfnを実行する。
func (c *cli) withClient(fn func(ctx context.Context, cmd *cobra.Command, cl *Client, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, log, err := Init(c.env)
		if err != nil {
			return err
		}
		cl, err := NewClient(cmd.Context(), c.env, cfg, log)
		if err != nil {
			return err
		}
		defer func() {
			if err := cl.Close(); err != nil {
				log.Warn("failed to close client", slog.String("error", err.Error()))
			}
		}()
		return fn(cmd.Context(), cmd, cl, args)
	}
}

// requireLogin はログインしていない場合にエラーを返す。
func requireLogin(cl *Client) error {
	if !cl.Session.IsAuthenticated() {
		return fmt.Errorf("not logged in: run `campuslink login` first")
	}
	return nil
}

func (c *cli) loginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Args:  cobra.NoArgs,
		RunE: c.withClient(func(ctx context.Context, cmd *cobra.Command, cl *Client, _ []string) error {
			if password == "" {
				password = os.Getenv("CAMPUSLINK_PASSWORD")
			}
			p, err := cl.Auth.Login(ctx, email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Welcome back, %s!\n", model.DeriveDisplayName(p))
			return nil
		}),
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (or CAMPUSLINK_PASSWORD)")
	return cmd
}

func (c *cli) signupCmd() *cobra.Command {
	var req auth.SignupRequest
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: c.withClient(func(ctx context.Context, cmd *cobra.Command, cl *Client, _ []string) error {
			if req.Password == "" {
				req.Password = os.Getenv("CAMPUSLINK_PASSWORD")
			}
			p, err := cl.Auth.Signup(ctx, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Account created. Welcome, %s (%s)!\n", model.DeriveDisplayName(p), p.Role)
			return nil
		}),
	}
	cmd.Flags().StringVar(&req.Name, "name", "", "display name")
	cmd.Flags().StringVar(&req.Email, "email", "", "account email")
	cmd.Flags().StringVar(&req.Password, "password", "", "account password (or CAMPUSLINK_PASSWORD)")
	cmd.Flags().StringVar(&req.Role, "role", string(model.RoleStudent), "student or admin")
	return cmd
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: c.withClient(func(ctx context.Context, cmd *cobra.Command, cl *Client, _ []string) error {
			if err := cl.Auth.Logout(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		}),
	}
}

func (c *cli) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: c.withClient(func(_ context.Context, cmd *cobra.Command, cl *Client, _ []string) error {
			out := cmd.OutOrStdout()
			if !cl.Session.IsAuthenticated() {
				fmt.Fprintln(out, "Not logged in.")
				return nil
			}
			p := cl.Session.Principal()
			fmt.Fprintf(out, "%s <%s> (%s)\n", cl.Session.DisplayName(), p.Email, p.Role)
			return nil
		}),
	}
}

func (c *cli) listCmd() *cobra.Command {
	var (
		category string
		newsType string
		filter   portal.LostFoundFilter
	)
	cmd := &cobra.Command{
		Use:       "list <resource>",
		Short:     "List a portal resource",
		Long:      "List a portal resource: " + strings.Join(listableResources, ", "),
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: listableResources,
		RunE: c.withClient(func(ctx context.Context, cmd *cobra.Command, cl *Client, args []string) error {
			if err := requireLogin(cl); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch args[0] {
			case resourceAnnouncements:
				list, err := cl.Portal.Announcements(ctx)
				if err != nil {
					return err
				}
				return renderAnnouncements(out, list)
			case resourceComplaints:
				list, err := cl.Portal.Complaints(ctx)
				if err != nil {
					return err
				}
				return renderComplaints(out, list)
			case resourceLostFound:
				list, err := cl.Portal.LostFound(ctx)
				if err != nil {
					return err
				}
				list.Items = portal.FilterLostFound(list.Items, filter)
				return renderLostFound(out, list)
			case resourceTimetable:
				list, err := cl.Portal.Timetable(ctx)
				if err != nil {
					return err
				}
				return renderTimetable(out, list)
			case resourcePolls:
				list, err := cl.Portal.Polls(ctx, category)
				if err != nil {
					return err
				}
				return renderPolls(out, list, cl.Session.Principal().ID)
			default:
				list, err := cl.Portal.TechNews(ctx, newsType)
				if err != nil {
					return err
				}
				return renderTechNews(out, list)
			}
		}),
	}
	cmd.Flags().StringVar(&category, "category", "", "poll category")
	cmd.Flags().StringVar(&newsType, "type", "", "tech news type")
	cmd.Flags().StringVar(&filter.ItemType, "item-type", "", "lost & found item type")
	cmd.Flags().StringVar(&filter.Status, "status", "", "lost & found status (lost, found, claimed)")
	cmd.Flags().StringVar(&filter.Search, "search", "", "lost & found keyword")
	return cmd
}

// createFlags はcreateコマンドの全リソース共通のフラグ。
type createFlags struct {
	title, description, category, location, priority string
	itemType, contact, status                         string
	course, instructor, day, room                     string
	period                                            int
	question                                          string
	options                                           []string
	multiple                                          bool
	endDate                                           string
	newsType, link, image                             string
	newsPriority                                      int
}

func (c *cli) createCmd() *cobra.Command {
	var f createFlags
	cmd := &cobra.Command{
		Use:       "create <resource>",
		Short:     "Create a portal entry",
		Long:      "Create a portal entry: " + strings.Join(listableResources, ", "),
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: listableResources,
		RunE: c.withClient(func(ctx context.Context, cmd *cobra.Command, cl *Client, args []string) error {
			if err := requireLogin(cl); err != nil {
				return err
			}
			id, err := createResource(ctx, cl.Portal, args[0], f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s %s\n", args[0], id)
			return nil
		}),
	}
	fl := cmd.Flags()
	fl.StringVar(&f.title, "title", "", "title")
	fl.StringVar(&f.description, "description", "", "description")
	fl.StringVar(&f.category, "category", "", "category")
	fl.StringVar(&f.location, "location", "", "location (complaints, lost-found)")
	fl.StringVar(&f.priority, "priority", "", "complaint priority (low, medium, high)")
	fl.StringVar(&f.itemType, "item-type", "", "lost & found item type")
	fl.StringVar(&f.contact, "contact", "", "lost & found contact info")
	fl.StringVar(&f.status, "status", "", "lost & found status (lost, found)")
	fl.StringVar(&f.course, "course", "", "timetable course name")
	fl.StringVar(&f.instructor, "instructor", "", "timetable instructor")
	fl.StringVar(&f.day, "day", "", "timetable day")
	fl.IntVar(&f.period, "period", 0, "timetable period")
	fl.StringVar(&f.room, "room", "", "timetable room")
	fl.StringVar(&f.question, "question", "", "poll question")
	fl.StringArrayVar(&f.options, "option", nil, "poll option (repeat for each option)")
	fl.BoolVar(&f.multiple, "multiple", false, "allow multiple votes per user")
	fl.StringVar(&f.endDate, "end-date", "", "poll end date (YYYY-MM-DD)")
	fl.StringVar(&f.newsType, "type", "", "tech news type")
	fl.StringVar(&f.link, "link", "", "tech news link")
	fl.StringVar(&f.image, "image", "", "tech news image URL")
	fl.IntVar(&f.newsPriority, "news-priority", 0, "tech news priority")
	return cmd
}

func createResource(ctx context.Context, p *portal.Client, resource string, f createFlags) (string, error) {
	switch resource {
	case resourceAnnouncements:
		a, err := p.CreateAnnouncement(ctx, model.Announcement{Title: f.title, Description: f.description, Category: f.category})
		if err != nil {
			return "", err
		}
		return a.ID, nil
	case resourceComplaints:
		cp, err := p.CreateComplaint(ctx, model.Complaint{
			Title: f.title, Description: f.description, Category: f.category, Location: f.location, Priority: f.priority,
		})
		if err != nil {
			return "", err
		}
		return cp.ID, nil
	case resourceLostFound:
		item, err := p.CreateLostFound(ctx, model.LostFoundItem{
			ItemType: f.itemType, Title: f.title, Description: f.description,
			Location: f.location, ContactInfo: f.contact, Status: f.status,
		})
		if err != nil {
			return "", err
		}
		return item.ID, nil
	case resourceTimetable:
		e, err := p.CreateTimetableEntry(ctx, model.TimetableEntry{
			CourseName: f.course, Instructor: f.instructor, Day: f.day, Period: f.period, Room: f.room,
		})
		if err != nil {
			return "", err
		}
		return e.ID, nil
	case resourcePolls:
		req := model.NewPollRequest{
			Question: f.question, Description: f.description, Options: f.options,
			AllowMultipleVotes: f.multiple, Category: f.category,
		}
		if f.endDate != "" {
			req.EndDate = &f.endDate
		}
		poll, err := p.CreatePoll(ctx, req)
		if err != nil {
			return "", err
		}
		return poll.ID, nil
	case resourceTechNews:
		n, err := p.CreateTechNews(ctx, model.TechNews{
			Title: f.title, Description: f.description, Type: f.newsType,
			Link: f.link, ImageURL: f.image, Priority: f.newsPriority,
		})
		if err != nil {
			return "", err
		}
		return n.ID, nil
	}
	return "", fmt.Errorf("unknown resource %q", resource)
}

func (c *cli) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "delete <resource> <id>",
		Short:     "Delete a portal entry",
		Long:      "Delete a portal entry: " + strings.Join(deletableResources, ", "),
		Args:      cobra.ExactArgs(2),
		ValidArgs: deletableResources,
		RunE: c.withClient(func(ctx context.Context, cmd *cobra.Command, cl *Client, args []string) error {
			if err := requireLogin(cl); err != nil {
				return err
			}
			resource, id := args[0], args[1]
			var err error
			switch resource {
			case resourceLostFound:
				err = cl.Portal.DeleteLostFound(ctx, id)
			case resourceTimetable:
				err = cl.Portal.DeleteTimetableEntry(ctx, id)
			case resourcePolls:
				err = cl.Portal.DeletePoll(ctx, id)
			case resourceTechNews:
				err = cl.Portal.DeleteTechNews(ctx, id)
			default:
				return fmt.Errorf("cannot delete %q (allowed: %s)", resource, strings.Join(deletableResources, ", "))
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s %s\n", resource, id)
			return nil
		}),
	}
}

func (c *cli) voteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vote <poll-id> <option-number>",
		Short: "Vote for a poll option (options are numbered from 1)",
		Args:  cobra.ExactArgs(2),
		RunE: c.withClient(func(ctx context.Context, cmd *cobra.Command, cl *Client, args []string) error {
			if err := requireLogin(cl); err != nil {
				return err
			}
			n, err := strconv.Atoi(args[1])
			if err != nil || n < 1 {
				return fmt.Errorf("option number must be a positive integer, got %q", args[1])
			}
			poll, err := cl.Portal.Vote(ctx, args[0], n-1)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Vote recorded for %q (%d total votes)\n", poll.Question, poll.TotalVotes())
			return nil
		}),
	}
}

func (c *cli) resultsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "results <poll-id>",
		Short: "Show poll results",
		Args:  cobra.ExactArgs(1),
		RunE: c.withClient(func(ctx context.Context, cmd *cobra.Command, cl *Client, args []string) error {
			if err := requireLogin(cl); err != nil {
				return err
			}
			res, err := cl.Portal.PollResults(ctx, args[0])
			if err != nil {
				return err
			}
			return renderPollResults(cmd.OutOrStdout(), res)
		}),
	}
}

func (c *cli) complaintStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "complaint-status <complaint-id> <pending|in-progress|resolved>",
		Short: "Change a complaint's status (admin only)",
		Args:  cobra.ExactArgs(2),
		RunE: c.withClient(func(ctx context.Context, cmd *cobra.Command, cl *Client, args []string) error {
			if err := requireLogin(cl); err != nil {
				return err
			}
			updated, err := cl.Portal.UpdateComplaintStatus(ctx, args[0], model.ComplaintStatus(args[1]))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Complaint %s is now %s\n", updated.ID, updated.Status)
			return nil
		}),
	}
}

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations for the postgres session backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := Init(c.env)
			if err != nil {
				return err
			}
			return runMigrate(cfg, log)
		},
	}
}

// backendLabel はログ用にセッション保存先を表す。
func backendLabel(cfg *config.Config) string {
	if cfg.SessionBackend == config.SessionBackendFile {
		return string(cfg.SessionBackend) + ":" + cfg.SessionFile
	}
	return string(cfg.SessionBackend)
}
