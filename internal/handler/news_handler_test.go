package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/md-abdullah-al-ahad/krishilink-client/internal/news"
)

func TestNewsHandler_List(t *testing.T) {
	tests := []struct {
		name       string
		articles   []news.Article
		wantTitles []string
	}{
		{
			name: "フィード記事をそのまま返す",
			articles: []news.Article{
				{Title: "Paddy Prices Rise", Summary: "Wholesale paddy prices rose this week.", Source: "Agri Times"},
				{Title: "Monsoon Update", Summary: "Normal rainfall expected.", Source: "Agri Times"},
			},
			wantTitles: []string{"Paddy Prices Rise", "Monsoon Update"},
		},
		{
			name:     "フィード取得失敗時はフォールバック記事を返す",
			articles: news.FallbackArticles(),
			wantTitles: []string{
				"Government Announces New Subsidy for Small Farmers",
				"Monsoon Forecast Brings Hope for Rice Growers",
				"Cold Storage Capacity Expands in Rural Districts",
				"Direct-to-Buyer Sales Lift Farmer Incomes",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewNewsHandler(&mockNewsService{
				articlesFn: func(ctx context.Context) []news.Article {
					return tt.articles
				},
			})

			r := httptest.NewRequest(http.MethodGet, "/api/news", nil)
			w := httptest.NewRecorder()
			handler.List(w, r)

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}

			var body struct {
				Articles []news.Article `json:"articles"`
			}
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if len(body.Articles) != len(tt.wantTitles) {
				t.Fatalf("len(articles) = %d, want %d", len(body.Articles), len(tt.wantTitles))
			}
			for i, want := range tt.wantTitles {
				if body.Articles[i].Title != want {
					t.Errorf("articles[%d].Title = %q, want %q", i, body.Articles[i].Title, want)
				}
			}
		})
	}
}
