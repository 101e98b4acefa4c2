package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/md-abdullah-al-ahad/krishilink-client/internal/middleware"
	"github.com/md-abdullah-al-ahad/krishilink-client/internal/model"
)

// CropServiceInterface は作物ハンドラーが必要とするサービスインターフェース。
type CropServiceInterface interface {
	// Search は全リスティングを取得し、クエリが指定されていれば名前で絞り込む。
	Search(ctx context.Context, query string) ([]model.Crop, error)
	// Latest は最新のリスティングを返す。
	Latest(ctx context.Context, limit int) ([]model.Crop, error)
	// Get は単一のリスティングを取得する。
	Get(ctx context.Context, id string) (*model.Crop, error)
	// ListByOwner は所有者のリスティング一覧を取得する。
	ListByOwner(ctx context.Context, ownerEmail string) ([]model.Crop, error)
	// Create は新しいリスティングを作成する。
	Create(ctx context.Context, owner *model.User, input *model.CropInput) (*model.Crop, error)
	// Update は所有者のリスティングを更新する。
	Update(ctx context.Context, user *model.User, id string, input *model.CropInput) (*model.Crop, error)
	// Delete は所有者のリスティングを削除する。
	Delete(ctx context.Context, user *model.User, id string) error
}

// CropHandler は作物リスティングのHTTPハンドラー。
type CropHandler struct {
	service CropServiceInterface
}

// NewCropHandler はCropHandlerを生成する。
func NewCropHandler(service CropServiceInterface) *CropHandler {
	return &CropHandler{service: service}
}

// cropsResponse は作物一覧のAPIレスポンス。
type cropsResponse struct {
	Crops []model.Crop `json:"crops"`
}

// Search は作物一覧の取得・名前検索を処理する。
// GET /api/crops?q=tomato
func (h *CropHandler) Search(w http.ResponseWriter, r *http.Request) {
	crops, err := h.service.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, cropsResponse{Crops: crops})
}

// Latest は最新リスティングの取得を処理する。
// GET /api/crops/latest?limit=6
func (h *CropHandler) Latest(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeAppErrorResponse(w, http.StatusBadRequest, model.NewValidationError("limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	crops, err := h.service.Latest(r.Context(), limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, cropsResponse{Crops: crops})
}

// Mine はログインユーザー自身のリスティング一覧を処理する。
// GET /api/crops/mine
func (h *CropHandler) Mine(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAppErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	crops, err := h.service.ListByOwner(r.Context(), user.Email)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, cropsResponse{Crops: crops})
}

// Get は作物詳細の取得を処理する。
// GET /api/crops/:id
func (h *CropHandler) Get(w http.ResponseWriter, r *http.Request) {
	cropID := chi.URLParam(r, "id")

	crop, err := h.service.Get(r.Context(), cropID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, crop)
}

// Create はリスティング作成を処理する。
// POST /api/crops
func (h *CropHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAppErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var input model.CropInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeAppErrorResponse(w, http.StatusBadRequest, invalidRequestBodyError())
		return
	}

	crop, err := h.service.Create(r.Context(), user, &input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, crop)
}

// Update はリスティング更新を処理する。所有者のみ実行できる。
// PATCH /api/crops/:id
func (h *CropHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAppErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}
	cropID := chi.URLParam(r, "id")

	var input model.CropInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeAppErrorResponse(w, http.StatusBadRequest, invalidRequestBodyError())
		return
	}

	crop, err := h.service.Update(r.Context(), user, cropID, &input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, crop)
}

// Delete はリスティング削除を処理する。所有者のみ実行できる。
// DELETE /api/crops/:id
func (h *CropHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAppErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}
	cropID := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), user, cropID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
