package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/md-abdullah-al-ahad/krishilink-client/internal/interest"
	"github.com/md-abdullah-al-ahad/krishilink-client/internal/middleware"
	"github.com/md-abdullah-al-ahad/krishilink-client/internal/model"
)

// InterestServiceInterface は興味ハンドラーが必要とするサービスインターフェース。
type InterestServiceInterface interface {
	// Express は買い手の興味リクエストを検証し送信する。
	Express(ctx context.Context, buyer *model.User, cropID string, quantity float64, message string) (*model.Interest, error)
	// ListForCrop は作物に届いた興味一覧を返す。所有者のみ閲覧できる。
	ListForCrop(ctx context.Context, user *model.User, cropID string) ([]model.Interest, error)
	// ListForBuyer は買い手自身の興味一覧を返す。
	ListForBuyer(ctx context.Context, user *model.User, mode interest.SortMode) ([]model.Interest, error)
	// UpdateStatus はpending状態の興味を承認または却下する。
	UpdateStatus(ctx context.Context, user *model.User, cropID, interestID string, status model.InterestStatus) (*model.Interest, error)
}

// InterestHandler は興味リクエストのHTTPハンドラー。
type InterestHandler struct {
	service InterestServiceInterface
}

// NewInterestHandler はInterestHandlerを生成する。
func NewInterestHandler(service InterestServiceInterface) *InterestHandler {
	return &InterestHandler{service: service}
}

// expressInterestRequest は興味送信リクエストのボディ。
type expressInterestRequest struct {
	CropID   string  `json:"cropId"`
	Quantity float64 `json:"quantity"`
	Message  string  `json:"message"`
}

// updateInterestStatusRequest は承認・却下リクエストのボディ。
// 興味はcropId配下で管理されるため、対象作物の指定が必要。
type updateInterestStatusRequest struct {
	CropID string               `json:"cropId"`
	Status model.InterestStatus `json:"status"`
}

// interestsResponse は興味一覧のAPIレスポンス。
type interestsResponse struct {
	Interests []model.Interest `json:"interests"`
}

// Express は興味送信を処理する。
// POST /api/interests
func (h *InterestHandler) Express(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAppErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req expressInterestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAppErrorResponse(w, http.StatusBadRequest, invalidRequestBodyError())
		return
	}
	if req.CropID == "" {
		writeAppErrorResponse(w, http.StatusBadRequest, model.NewValidationError("cropId is required"))
		return
	}

	created, err := h.service.Express(r.Context(), user, req.CropID, req.Quantity, req.Message)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// ListForCrop は作物に届いた興味一覧を処理する。所有者のみ。
// GET /api/crops/:id/interests
func (h *InterestHandler) ListForCrop(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAppErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}
	cropID := chi.URLParam(r, "id")

	interests, err := h.service.ListForCrop(r.Context(), user, cropID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, interestsResponse{Interests: interests})
}

// ListMine は買い手自身の興味一覧を処理する。
// GET /api/interests?sort=status
func (h *InterestHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAppErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	mode := interest.SortByDate
	switch r.URL.Query().Get("sort") {
	case "", "date":
	case "status":
		mode = interest.SortByStatus
	default:
		writeAppErrorResponse(w, http.StatusBadRequest, model.NewValidationError("sort must be 'date' or 'status'"))
		return
	}

	interests, err := h.service.ListForBuyer(r.Context(), user, mode)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, interestsResponse{Interests: interests})
}

// UpdateStatus は興味の承認・却下を処理する。作物の所有者のみ。
// PATCH /api/interests/:id/status
func (h *InterestHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAppErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}
	interestID := chi.URLParam(r, "id")

	var req updateInterestStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAppErrorResponse(w, http.StatusBadRequest, invalidRequestBodyError())
		return
	}
	if req.CropID == "" {
		writeAppErrorResponse(w, http.StatusBadRequest, model.NewValidationError("cropId is required"))
		return
	}

	updated, err := h.service.UpdateStatus(r.Context(), user, req.CropID, interestID, req.Status)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}
