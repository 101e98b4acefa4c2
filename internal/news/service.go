package news

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
)

// maxArticles はニュースセクションに表示する最大記事数。
const maxArticles = 4

// summaryMaxRunes は記事概要の最大文字数。ニュースカードの表示幅に合わせる。
const summaryMaxRunes = 280

// Sanitizer は記事HTMLを表示用の概要テキストへ変換するインターフェース。
type Sanitizer interface {
	SummaryText(rawHTML string, maxRunes int) string
}

// Article は農業ニュースの1記事を表す。
type Article struct {
	Title     string     `json:"title"`
	Summary   string     `json:"summary"`
	Link      string     `json:"link,omitempty"`
	Source    string     `json:"source,omitempty"`
	Published *time.Time `json:"publishedAt,omitempty"`
}

// ServiceConfig はニュースサービスの設定。
type ServiceConfig struct {
	// FeedURL はフィードのURL。空の場合はSiteURLから自動検出する。
	FeedURL string
	// SiteURL はフィード自動検出の対象サイト。
	SiteURL string
	Timeout time.Duration
	MaxSize int64
}

// Service は農業ニュースの取得サービス。
// フィードの取得に失敗した場合は組み込みのフォールバック記事を返すため、
// Articlesが失敗することはない。
type Service struct {
	config    ServiceConfig
	detector  *Detector
	sanitizer Sanitizer
	ssrfGuard SSRFValidator

	// 解決済みフィードURLのキャッシュ。自動検出は初回のみ行う。
	mu          sync.Mutex
	resolvedURL string
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(config ServiceConfig, ssrfGuard SSRFValidator, sanitizer Sanitizer) *Service {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.MaxSize <= 0 {
		config.MaxSize = 5 * 1024 * 1024
	}
	return &Service{
		config:    config,
		detector:  NewDetector(ssrfGuard, config.Timeout, config.MaxSize),
		sanitizer: sanitizer,
		ssrfGuard: ssrfGuard,
	}
}

// Articles は最新の農業ニュース記事を最大4件返す。
// フィード未設定・取得失敗・パース失敗のいずれの場合も
// フォールバック記事を返し、エラーは返さない。
func (s *Service) Articles(ctx context.Context) []Article {
	feedURL, err := s.feedURL(ctx)
	if err != nil {
		slog.Warn("news feed unavailable, using fallback articles",
			slog.String("error", err.Error()),
		)
		return FallbackArticles()
	}

	articles, err := s.fetch(ctx, feedURL)
	if err != nil {
		slog.Warn("news fetch failed, using fallback articles",
			slog.String("feed_url", feedURL),
			slog.String("error", err.Error()),
		)
		return FallbackArticles()
	}
	return articles
}

// feedURL は使用するフィードURLを決定する。
// 明示設定があればそれを使い、なければサイトから一度だけ自動検出する。
func (s *Service) feedURL(ctx context.Context) (string, error) {
	if s.config.FeedURL != "" {
		return s.config.FeedURL, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.resolvedURL != "" {
		return s.resolvedURL, nil
	}

	resolved, err := s.detector.Discover(ctx, s.config.SiteURL)
	if err != nil {
		return "", err
	}
	s.resolvedURL = resolved
	return resolved, nil
}

// fetch はフィードを取得・パースし、サニタイズ済みの記事を返す。
func (s *Service) fetch(ctx context.Context, feedURL string) ([]Article, error) {
	if s.ssrfGuard != nil {
		if err := s.ssrfGuard.ValidateURL(feedURL); err != nil {
			return nil, err
		}
	}

	parser := gofeed.NewParser()
	if s.ssrfGuard != nil {
		parser.Client = s.ssrfGuard.NewSafeClient(s.config.Timeout, s.config.MaxSize)
	}
	parser.UserAgent = "KrishiLink/1.0 AgroNews"

	feed, err := parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, err
	}

	articles := make([]Article, 0, maxArticles)
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		articles = append(articles, s.toArticle(feed, item))
		if len(articles) >= maxArticles {
			break
		}
	}
	if len(articles) == 0 {
		return FallbackArticles(), nil
	}
	return articles, nil
}

// toArticle はフィードアイテムを記事へ変換する。
// 概要はHTMLを除去し、表示幅に収まる長さへ切り詰めたテキストになる。
func (s *Service) toArticle(feed *gofeed.Feed, item *gofeed.Item) Article {
	summary := item.Description
	if summary == "" {
		summary = item.Content
	}
	if s.sanitizer != nil {
		summary = s.sanitizer.SummaryText(summary, summaryMaxRunes)
	}
	summary = strings.Join(strings.Fields(summary), " ")

	article := Article{
		Title:   strings.TrimSpace(item.Title),
		Summary: summary,
		Link:    item.Link,
		Source:  feed.Title,
	}
	if item.PublishedParsed != nil {
		article.Published = item.PublishedParsed
	}
	return article
}

// FallbackArticles はフィードが利用できない場合に表示する組み込み記事を返す。
func FallbackArticles() []Article {
	return []Article{
		{
			Title:   "Government Announces New Subsidy for Small Farmers",
			Summary: "The agriculture ministry has unveiled a new subsidy program covering seeds and fertilizer for smallholder farmers, with applications opening next month.",
			Source:  "KrishiLink",
		},
		{
			Title:   "Monsoon Forecast Brings Hope for Rice Growers",
			Summary: "Meteorologists expect a normal monsoon this season, easing concerns about irrigation costs for paddy cultivation across the northern districts.",
			Source:  "KrishiLink",
		},
		{
			Title:   "Cold Storage Capacity Expands in Rural Districts",
			Summary: "Three new cold storage facilities will open this quarter, helping vegetable growers cut post-harvest losses and reach distant markets.",
			Source:  "KrishiLink",
		},
		{
			Title:   "Direct-to-Buyer Sales Lift Farmer Incomes",
			Summary: "A recent survey shows farmers selling directly to buyers through online marketplaces earn noticeably more than those relying on traditional middlemen.",
			Source:  "KrishiLink",
		},
	}
}
