package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/md-abdullah-al-ahad/krishilink-client/internal/model"
)

// mockCropService はCropServiceInterfaceのモック実装。
type mockCropService struct {
	searchFn      func(ctx context.Context, query string) ([]model.Crop, error)
	latestFn      func(ctx context.Context, limit int) ([]model.Crop, error)
	getFn         func(ctx context.Context, id string) (*model.Crop, error)
	listByOwnerFn func(ctx context.Context, ownerEmail string) ([]model.Crop, error)
	createFn      func(ctx context.Context, owner *model.User, input *model.CropInput) (*model.Crop, error)
	updateFn      func(ctx context.Context, user *model.User, id string, input *model.CropInput) (*model.Crop, error)
	deleteFn      func(ctx context.Context, user *model.User, id string) error
}

func (m *mockCropService) Search(ctx context.Context, query string) ([]model.Crop, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, query)
	}
	return nil, nil
}

func (m *mockCropService) Latest(ctx context.Context, limit int) ([]model.Crop, error) {
	if m.latestFn != nil {
		return m.latestFn(ctx, limit)
	}
	return nil, nil
}

func (m *mockCropService) Get(ctx context.Context, id string) (*model.Crop, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, nil
}

func (m *mockCropService) ListByOwner(ctx context.Context, ownerEmail string) ([]model.Crop, error) {
	if m.listByOwnerFn != nil {
		return m.listByOwnerFn(ctx, ownerEmail)
	}
	return nil, nil
}

func (m *mockCropService) Create(ctx context.Context, owner *model.User, input *model.CropInput) (*model.Crop, error) {
	if m.createFn != nil {
		return m.createFn(ctx, owner, input)
	}
	return nil, nil
}

func (m *mockCropService) Update(ctx context.Context, user *model.User, id string, input *model.CropInput) (*model.Crop, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, user, id, input)
	}
	return nil, nil
}

func (m *mockCropService) Delete(ctx context.Context, user *model.User, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, user, id)
	}
	return nil
}

// testCrop はテスト用の作物リスティングを生成するヘルパー。
func testCrop(id, name string) model.Crop {
	return model.Crop{
		ID:           id,
		Name:         name,
		Category:     model.CategoryVegetable,
		PricePerUnit: 20,
		Unit:         model.UnitKg,
		Quantity:     50,
		Description:  "Fresh organic produce straight from the field",
		Location:     "Rajshahi",
		ImageURL:     "https://img.example.com/crop.jpg",
		Owner: model.CropOwner{
			OwnerName:  "Seller Karim",
			OwnerEmail: "seller@example.com",
		},
		CreatedAt: time.Now(),
	}
}

// --- GET /api/crops テスト ---

func TestCropHandler_Search(t *testing.T) {
	svc := &mockCropService{
		searchFn: func(ctx context.Context, query string) ([]model.Crop, error) {
			if query != "tomato" {
				t.Errorf("query = %s, want tomato", query)
			}
			return []model.Crop{testCrop("c1", "Tomato")}, nil
		},
	}
	h := NewCropHandler(svc)

	r := httptest.NewRequest(http.MethodGet, "/api/crops?q=tomato", nil)
	w := httptest.NewRecorder()
	h.Search(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp cropsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Crops) != 1 || resp.Crops[0].Name != "Tomato" {
		t.Errorf("crops = %+v, want single Tomato", resp.Crops)
	}
}

func TestCropHandler_Search_DataServiceDown(t *testing.T) {
	svc := &mockCropService{
		searchFn: func(ctx context.Context, query string) ([]model.Crop, error) {
			return nil, model.NewDataServiceError("")
		},
	}
	h := NewCropHandler(svc)

	r := httptest.NewRequest(http.MethodGet, "/api/crops", nil)
	w := httptest.NewRecorder()
	h.Search(w, r)

	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadGateway)
	}
}

// --- GET /api/crops/latest テスト ---

func TestCropHandler_Latest(t *testing.T) {
	svc := &mockCropService{
		latestFn: func(ctx context.Context, limit int) ([]model.Crop, error) {
			if limit != 3 {
				t.Errorf("limit = %d, want 3", limit)
			}
			return []model.Crop{testCrop("c1", "Tomato")}, nil
		},
	}
	h := NewCropHandler(svc)

	r := httptest.NewRequest(http.MethodGet, "/api/crops/latest?limit=3", nil)
	w := httptest.NewRecorder()
	h.Latest(w, r)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestCropHandler_Latest_InvalidLimit(t *testing.T) {
	h := NewCropHandler(&mockCropService{})

	r := httptest.NewRequest(http.MethodGet, "/api/crops/latest?limit=abc", nil)
	w := httptest.NewRecorder()
	h.Latest(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// --- GET /api/crops/mine テスト ---

func TestCropHandler_Mine(t *testing.T) {
	svc := &mockCropService{
		listByOwnerFn: func(ctx context.Context, ownerEmail string) ([]model.Crop, error) {
			if ownerEmail != "farmer@example.com" {
				t.Errorf("ownerEmail = %s, want farmer@example.com", ownerEmail)
			}
			return []model.Crop{testCrop("c1", "Tomato")}, nil
		},
	}
	h := NewCropHandler(svc)

	r := httptest.NewRequest(http.MethodGet, "/api/crops/mine", nil)
	r = withUser(r, testUser())
	w := httptest.NewRecorder()
	h.Mine(w, r)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

// --- GET /api/crops/:id テスト ---

func TestCropHandler_Get_NotFound(t *testing.T) {
	svc := &mockCropService{
		getFn: func(ctx context.Context, id string) (*model.Crop, error) {
			return nil, model.NewCropNotFoundError(id)
		},
	}
	h := NewCropHandler(svc)

	r := httptest.NewRequest(http.MethodGet, "/api/crops/missing", nil)
	r = withChiURLParam(r, "id", "missing")
	w := httptest.NewRecorder()
	h.Get(w, r)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	resp := parseAPIErrorResponse(t, w)
	if resp["code"] != model.ErrCodeCropNotFound {
		t.Errorf("code = %s, want %s", resp["code"], model.ErrCodeCropNotFound)
	}
}

// --- POST /api/crops テスト ---

func TestCropHandler_Create_Success(t *testing.T) {
	svc := &mockCropService{
		createFn: func(ctx context.Context, owner *model.User, input *model.CropInput) (*model.Crop, error) {
			if owner.Email != "farmer@example.com" {
				t.Errorf("owner.email = %s, want farmer@example.com", owner.Email)
			}
			if input.Name != "Tomato" {
				t.Errorf("input.name = %s, want Tomato", input.Name)
			}
			c := testCrop("c-new", input.Name)
			return &c, nil
		},
	}
	h := NewCropHandler(svc)

	body := bytes.NewBufferString(`{"name":"Tomato","type":"Vegetable","pricePerUnit":20,"unit":"kg","quantity":50,"description":"Fresh organic produce straight from the field","location":"Rajshahi","image":"https://img.example.com/t.jpg"}`)
	r := httptest.NewRequest(http.MethodPost, "/api/crops", body)
	r = withUser(r, testUser())
	w := httptest.NewRecorder()
	h.Create(w, r)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	var crop model.Crop
	if err := json.NewDecoder(w.Body).Decode(&crop); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if crop.ID != "c-new" {
		t.Errorf("crop.id = %s, want c-new", crop.ID)
	}
}

func TestCropHandler_Create_Anonymous(t *testing.T) {
	h := NewCropHandler(&mockCropService{})

	body := bytes.NewBufferString(`{"name":"Tomato"}`)
	r := httptest.NewRequest(http.MethodPost, "/api/crops", body)
	w := httptest.NewRecorder()
	h.Create(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestCropHandler_Create_ValidationError(t *testing.T) {
	svc := &mockCropService{
		createFn: func(ctx context.Context, owner *model.User, input *model.CropInput) (*model.Crop, error) {
			return nil, model.NewValidationError("Description must be at least 20 characters")
		},
	}
	h := NewCropHandler(svc)

	body := bytes.NewBufferString(`{"name":"Tomato","description":"short"}`)
	r := httptest.NewRequest(http.MethodPost, "/api/crops", body)
	r = withUser(r, testUser())
	w := httptest.NewRecorder()
	h.Create(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// --- PATCH /api/crops/:id テスト ---

func TestCropHandler_Update_NotOwner(t *testing.T) {
	svc := &mockCropService{
		updateFn: func(ctx context.Context, user *model.User, id string, input *model.CropInput) (*model.Crop, error) {
			return nil, model.NewNotCropOwnerError()
		},
	}
	h := NewCropHandler(svc)

	body := bytes.NewBufferString(`{"name":"Tomato"}`)
	r := httptest.NewRequest(http.MethodPatch, "/api/crops/c1", body)
	r = withUser(r, testUser())
	r = withChiURLParam(r, "id", "c1")
	w := httptest.NewRecorder()
	h.Update(w, r)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

// --- DELETE /api/crops/:id テスト ---

func TestCropHandler_Delete_Success(t *testing.T) {
	var deleted string
	svc := &mockCropService{
		deleteFn: func(ctx context.Context, user *model.User, id string) error {
			deleted = id
			return nil
		},
	}
	h := NewCropHandler(svc)

	r := httptest.NewRequest(http.MethodDelete, "/api/crops/c1", nil)
	r = withUser(r, testUser())
	r = withChiURLParam(r, "id", "c1")
	w := httptest.NewRecorder()
	h.Delete(w, r)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if deleted != "c1" {
		t.Errorf("deleted = %s, want c1", deleted)
	}
}
