// Package technews は外部のRSS/Atomフィードをテックニュースとして取り込む。
package technews

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/campuslink/internal/gateway"
	"github.com/hitoshi/campuslink/internal/metrics"
	"github.com/hitoshi/campuslink/internal/model"
	"github.com/hitoshi/campuslink/internal/security"
)

const (
	// DefaultType は取り込んだ記事に付けるニュース種別。
	DefaultType = "tech_news"
	// defaultLimit は1回の取り込みで投稿する最大件数。
	defaultLimit = 10
	// descriptionMaxRunes は本文の最大文字数。
	descriptionMaxRunes = 500
	titleMaxRunes       = 200
	// defaultMaxBodySize はフィード本文の既定の最大読み取りサイズ（5MB）。
	defaultMaxBodySize = 5 * 1024 * 1024
)

// ErrInvalidFeed はRSS/Atomとして解釈できない場合のエラー。
var ErrInvalidFeed = errors.New("invalid feed")

// URLGuard はフィードURLの検証。
type URLGuard interface {
	ValidateURL(rawURL string) error
}

// Publisher はテックニュースの投稿先。
type Publisher interface {
	CreateTechNews(ctx context.Context, n model.TechNews) (*model.TechNews, error)
}

// Options は取り込みの設定。
type Options struct {
	// Type は投稿するニュース種別。空の場合はDefaultType。
	Type string
	// Limit は投稿する最大件数。0以下の場合は10件。
	Limit int
	// Priority は投稿の優先度。0以下の場合は1。
	Priority int
}

// Result は取り込み結果。
type Result struct {
	Parsed  int
	Created int
	Skipped int
}

// Importer はフィードを取得してテックニュースとして投稿する。
type Importer struct {
	guard       URLGuard
	httpClient  *http.Client
	publisher   Publisher
	title       *security.TextSanitizer
	description *security.TextSanitizer
	metrics     metrics.MetricsCollector
	logger      *slog.Logger
	maxBodySize int64
}

// NewImporter はImporterを生成する。
// httpClientにはsecurity.Guard.NewSafeClientで生成したクライアントを渡す。
func NewImporter(guard URLGuard, httpClient *http.Client, publisher Publisher, collector metrics.MetricsCollector, logger *slog.Logger, maxBodySize int64) *Importer {
	if collector == nil {
		collector = metrics.Noop{}
	}
	if maxBodySize <= 0 {
		maxBodySize = defaultMaxBodySize
	}
	return &Importer{
		guard:       guard,
		httpClient:  httpClient,
		publisher:   publisher,
		title:       security.NewTextSanitizer(titleMaxRunes),
		description: security.NewTextSanitizer(descriptionMaxRunes),
		metrics:     collector,
		logger:      logger,
		maxBodySize: maxBodySize,
	}
}

// Import はfeedURLのフィードを取得し、各記事を投稿する。
// 入力検証やバックエンドの400で拒否された記事はスキップする。
// 401を受けた場合はセッションが無効になっているため、その時点で中断してエラーを返す。
func (i *Importer) Import(ctx context.Context, feedURL string, opts Options) (*Result, error) {
	feed, err := i.fetch(ctx, feedURL)
	if err != nil {
		return nil, err
	}

	if opts.Type == "" {
		opts.Type = DefaultType
	}
	if opts.Limit <= 0 {
		opts.Limit = defaultLimit
	}
	if opts.Priority <= 0 {
		opts.Priority = 1
	}

	result := &Result{Parsed: len(feed.Items)}
	for _, item := range feed.Items {
		if result.Created >= opts.Limit {
			break
		}

		news, ok := i.toTechNews(item, opts)
		if !ok {
			result.Skipped++
			continue
		}

		if _, err := i.publisher.CreateTechNews(ctx, news); err != nil {
			if ctx.Err() != nil {
				i.metrics.RecordNewsImported(result.Created)
				i.logger.Warn("news import cancelled",
					slog.String("feed_url", feedURL),
					slog.Int("created", result.Created),
				)
				return result, err
			}
			if kind, ok := gateway.KindOf(err); ok && stopsImport(kind) {
				i.metrics.RecordNewsImported(result.Created)
				i.metrics.RecordNewsImportFailure(kind.String())
				i.logger.Warn("news import aborted",
					slog.String("feed_url", feedURL),
					slog.String("classification", kind.String()),
					slog.Int("created", result.Created),
				)
				return result, err
			}
			i.logger.Warn("skipping news item",
				slog.String("title", news.Title),
				slog.String("error", err.Error()),
			)
			result.Skipped++
			continue
		}
		result.Created++
	}

	i.metrics.RecordNewsImported(result.Created)
	i.logger.Info("news import completed",
		slog.String("feed_url", feedURL),
		slog.Int("parsed", result.Parsed),
		slog.Int("created", result.Created),
		slog.Int("skipped", result.Skipped),
	)
	return result, nil
}

// stopsImport は後続の記事も同じ理由で失敗する分類かを返す。
func stopsImport(kind gateway.Kind) bool {
	switch kind {
	case gateway.KindUnauthorized, gateway.KindForbidden, gateway.KindNetworkUnreachable, gateway.KindServerError:
		return true
	}
	return false
}

func (i *Importer) fetch(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	if err := i.guard.ValidateURL(feedURL); err != nil {
		i.metrics.RecordNewsImportFailure("ssrf")
		return nil, fmt.Errorf("feed URL rejected: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create feed request: %w", err)
	}
	req.Header.Set("User-Agent", "CampusLink/1.0 News Importer")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	resp, err := i.httpClient.Do(req)
	if err != nil {
		i.metrics.RecordNewsImportFailure("fetch")
		i.logger.Error("feed request failed",
			slog.String("feed_url", feedURL),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		i.metrics.RecordNewsImportFailure("status")
		i.logger.Warn("feed returned unexpected status",
			slog.String("feed_url", feedURL),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, i.maxBodySize))
	if err != nil {
		i.metrics.RecordNewsImportFailure("fetch")
		return nil, fmt.Errorf("failed to read feed body: %w", err)
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		i.metrics.RecordNewsImportFailure("parse")
		i.logger.Warn("failed to parse feed",
			slog.String("feed_url", feedURL),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %v", ErrInvalidFeed, err)
	}
	return feed, nil
}

func (i *Importer) toTechNews(item *gofeed.Item, opts Options) (model.TechNews, bool) {
	title := i.title.Text(item.Title)
	if title == "" {
		return model.TechNews{}, false
	}

	raw := item.Description
	if strings.TrimSpace(raw) == "" {
		raw = item.Content
	}
	description := i.description.Text(raw)
	if description == "" {
		description = title
	}

	news := model.TechNews{
		Title:       title,
		Description: description,
		Type:        opts.Type,
		Priority:    opts.Priority,
	}
	if security.ValidateLink(item.Link) == nil {
		news.Link = item.Link
	}
	if img := imageURL(item); security.ValidateLink(img) == nil {
		news.ImageURL = img
	}
	return news, true
}

func imageURL(item *gofeed.Item) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	for _, enc := range item.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") {
			return enc.URL
		}
	}
	return ""
}
