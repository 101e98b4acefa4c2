package handler

import (
	"context"
	"net/http"

	"github.com/md-abdullah-al-ahad/krishilink-client/internal/news"
)

// NewsServiceInterface はニュースハンドラーが必要とするサービスインターフェース。
type NewsServiceInterface interface {
	// Articles は農業ニュース記事を返す。取得に失敗した場合は組み込み記事を返す。
	Articles(ctx context.Context) []news.Article
}

// NewsHandler は農業ニュースのHTTPハンドラー。
type NewsHandler struct {
	service NewsServiceInterface
}

// NewNewsHandler はNewsHandlerを生成する。
func NewNewsHandler(service NewsServiceInterface) *NewsHandler {
	return &NewsHandler{service: service}
}

// newsResponse はニュース記事一覧のAPIレスポンス。
type newsResponse struct {
	Articles []news.Article `json:"articles"`
}

// List は農業ニュースの取得を処理する。認証不要。
// GET /api/news
func (h *NewsHandler) List(w http.ResponseWriter, r *http.Request) {
	articles := h.service.Articles(r.Context())
	writeJSON(w, http.StatusOK, newsResponse{Articles: articles})
}
