package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/md-abdullah-al-ahad/krishilink-client/internal/interest"
	"github.com/md-abdullah-al-ahad/krishilink-client/internal/model"
)

// mockInterestService はInterestServiceInterfaceのモック実装。
type mockInterestService struct {
	expressFn      func(ctx context.Context, buyer *model.User, cropID string, quantity float64, message string) (*model.Interest, error)
	listForCropFn  func(ctx context.Context, user *model.User, cropID string) ([]model.Interest, error)
	listForBuyerFn func(ctx context.Context, user *model.User, mode interest.SortMode) ([]model.Interest, error)
	updateStatusFn func(ctx context.Context, user *model.User, cropID, interestID string, status model.InterestStatus) (*model.Interest, error)
}

func (m *mockInterestService) Express(ctx context.Context, buyer *model.User, cropID string, quantity float64, message string) (*model.Interest, error) {
	if m.expressFn != nil {
		return m.expressFn(ctx, buyer, cropID, quantity, message)
	}
	return nil, nil
}

func (m *mockInterestService) ListForCrop(ctx context.Context, user *model.User, cropID string) ([]model.Interest, error) {
	if m.listForCropFn != nil {
		return m.listForCropFn(ctx, user, cropID)
	}
	return nil, nil
}

func (m *mockInterestService) ListForBuyer(ctx context.Context, user *model.User, mode interest.SortMode) ([]model.Interest, error) {
	if m.listForBuyerFn != nil {
		return m.listForBuyerFn(ctx, user, mode)
	}
	return nil, nil
}

func (m *mockInterestService) UpdateStatus(ctx context.Context, user *model.User, cropID, interestID string, status model.InterestStatus) (*model.Interest, error) {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, user, cropID, interestID, status)
	}
	return nil, nil
}

// --- POST /api/interests テスト ---

func TestInterestHandler_Express_Success(t *testing.T) {
	svc := &mockInterestService{
		expressFn: func(ctx context.Context, buyer *model.User, cropID string, quantity float64, message string) (*model.Interest, error) {
			if cropID != "c1" {
				t.Errorf("cropID = %s, want c1", cropID)
			}
			if quantity != 10 {
				t.Errorf("quantity = %g, want 10", quantity)
			}
			return &model.Interest{
				ID:        "i1",
				CropID:    cropID,
				UserEmail: buyer.Email,
				Quantity:  quantity,
				Message:   message,
				Status:    model.StatusPending,
			}, nil
		},
	}
	h := NewInterestHandler(svc)

	body := bytes.NewBufferString(`{"cropId":"c1","quantity":10,"message":"Interested in bulk purchase"}`)
	r := httptest.NewRequest(http.MethodPost, "/api/interests", body)
	r = withUser(r, testUser())
	w := httptest.NewRecorder()
	h.Express(w, r)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	var created model.Interest
	if err := json.NewDecoder(w.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if created.Status != model.StatusPending {
		t.Errorf("status = %s, want pending", created.Status)
	}
}

func TestInterestHandler_Express_OwnCrop(t *testing.T) {
	svc := &mockInterestService{
		expressFn: func(ctx context.Context, buyer *model.User, cropID string, quantity float64, message string) (*model.Interest, error) {
			return nil, model.NewOwnCropInterestError()
		},
	}
	h := NewInterestHandler(svc)

	body := bytes.NewBufferString(`{"cropId":"c1","quantity":10}`)
	r := httptest.NewRequest(http.MethodPost, "/api/interests", body)
	r = withUser(r, testUser())
	w := httptest.NewRecorder()
	h.Express(w, r)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

func TestInterestHandler_Express_Duplicate(t *testing.T) {
	svc := &mockInterestService{
		expressFn: func(ctx context.Context, buyer *model.User, cropID string, quantity float64, message string) (*model.Interest, error) {
			return nil, model.NewDuplicateInterestError()
		},
	}
	h := NewInterestHandler(svc)

	body := bytes.NewBufferString(`{"cropId":"c1","quantity":10}`)
	r := httptest.NewRequest(http.MethodPost, "/api/interests", body)
	r = withUser(r, testUser())
	w := httptest.NewRecorder()
	h.Express(w, r)

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Code, http.StatusConflict)
	}
	resp := parseAPIErrorResponse(t, w)
	if resp["code"] != model.ErrCodeDuplicateInterest {
		t.Errorf("code = %s, want %s", resp["code"], model.ErrCodeDuplicateInterest)
	}
}

func TestInterestHandler_Express_MissingCropID(t *testing.T) {
	h := NewInterestHandler(&mockInterestService{})

	body := bytes.NewBufferString(`{"quantity":10}`)
	r := httptest.NewRequest(http.MethodPost, "/api/interests", body)
	r = withUser(r, testUser())
	w := httptest.NewRecorder()
	h.Express(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// --- GET /api/crops/:id/interests テスト ---

func TestInterestHandler_ListForCrop(t *testing.T) {
	svc := &mockInterestService{
		listForCropFn: func(ctx context.Context, user *model.User, cropID string) ([]model.Interest, error) {
			return []model.Interest{
				{ID: "i1", CropID: cropID, Status: model.StatusPending},
			}, nil
		},
	}
	h := NewInterestHandler(svc)

	r := httptest.NewRequest(http.MethodGet, "/api/crops/c1/interests", nil)
	r = withUser(r, testUser())
	r = withChiURLParam(r, "id", "c1")
	w := httptest.NewRecorder()
	h.ListForCrop(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp interestsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Interests) != 1 {
		t.Errorf("interests = %d, want 1", len(resp.Interests))
	}
}

// --- GET /api/interests テスト ---

func TestInterestHandler_ListMine_SortModes(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantMode   interest.SortMode
		wantStatus int
	}{
		{"デフォルトは日付順", "", interest.SortByDate, http.StatusOK},
		{"日付順を明示", "?sort=date", interest.SortByDate, http.StatusOK},
		{"状態順", "?sort=status", interest.SortByStatus, http.StatusOK},
		{"不明なソートは400", "?sort=price", interest.SortByDate, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotMode interest.SortMode
			svc := &mockInterestService{
				listForBuyerFn: func(ctx context.Context, user *model.User, mode interest.SortMode) ([]model.Interest, error) {
					gotMode = mode
					return nil, nil
				},
			}
			h := NewInterestHandler(svc)

			r := httptest.NewRequest(http.MethodGet, "/api/interests"+tt.query, nil)
			r = withUser(r, testUser())
			w := httptest.NewRecorder()
			h.ListMine(w, r)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK && gotMode != tt.wantMode {
				t.Errorf("mode = %s, want %s", gotMode, tt.wantMode)
			}
		})
	}
}

// --- PATCH /api/interests/:id/status テスト ---

func TestInterestHandler_UpdateStatus_Success(t *testing.T) {
	svc := &mockInterestService{
		updateStatusFn: func(ctx context.Context, user *model.User, cropID, interestID string, status model.InterestStatus) (*model.Interest, error) {
			if cropID != "c1" || interestID != "i1" {
				t.Errorf("cropID = %s, interestID = %s, want c1/i1", cropID, interestID)
			}
			return &model.Interest{ID: interestID, CropID: cropID, Status: status}, nil
		},
	}
	h := NewInterestHandler(svc)

	body := bytes.NewBufferString(`{"cropId":"c1","status":"accepted"}`)
	r := httptest.NewRequest(http.MethodPatch, "/api/interests/i1/status", body)
	r = withUser(r, testUser())
	r = withChiURLParam(r, "id", "i1")
	w := httptest.NewRecorder()
	h.UpdateStatus(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var updated model.Interest
	if err := json.NewDecoder(w.Body).Decode(&updated); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if updated.Status != model.StatusAccepted {
		t.Errorf("status = %s, want accepted", updated.Status)
	}
}

func TestInterestHandler_UpdateStatus_AlreadyDecided(t *testing.T) {
	svc := &mockInterestService{
		updateStatusFn: func(ctx context.Context, user *model.User, cropID, interestID string, status model.InterestStatus) (*model.Interest, error) {
			return nil, model.NewInterestNotPendingError(model.StatusAccepted)
		},
	}
	h := NewInterestHandler(svc)

	body := bytes.NewBufferString(`{"cropId":"c1","status":"rejected"}`)
	r := httptest.NewRequest(http.MethodPatch, "/api/interests/i1/status", body)
	r = withUser(r, testUser())
	r = withChiURLParam(r, "id", "i1")
	w := httptest.NewRecorder()
	h.UpdateStatus(w, r)

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Code, http.StatusConflict)
	}
}
