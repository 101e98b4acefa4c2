package stub

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/md-abdullah-al-ahad/krishilink-client/internal/model"
)

// DataServer はデータサービスのインメモリスタブ。
// 保存とIDの採番のみを担当し、重複興味や数量範囲などの
// ビジネス検証は本物のサービスと同様に行わない（クライアント層の責務）。
type DataServer struct {
	mu        sync.Mutex
	crops     map[string]*model.Crop
	interests map[string]*model.Interest
	router    chi.Router
}

// NewDataServer はDataServerを生成する。
func NewDataServer() *DataServer {
	s := &DataServer{
		crops:     make(map[string]*model.Crop),
		interests: make(map[string]*model.Interest),
	}

	r := chi.NewRouter()
	r.Route("/crops", func(r chi.Router) {
		r.Get("/", s.handleListCrops)
		r.Post("/", s.handleCreateCrop)
		r.Get("/latest", s.handleLatestCrops)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetCrop)
			r.Patch("/", s.handleUpdateCrop)
			r.Delete("/", s.handleDeleteCrop)
		})
	})
	r.Route("/interests", func(r chi.Router) {
		r.Get("/", s.handleListInterests)
		r.Post("/", s.handleCreateInterest)
		r.Patch("/{id}/status", s.handleUpdateInterestStatus)
	})
	s.router = r

	return s
}

// Handler はスタブのHTTPハンドラーを返す。
func (s *DataServer) Handler() http.Handler {
	return s.router
}

// SeedDemoData はデモ用の作物リスティングを投入する。
func (s *DataServer) SeedDemoData() {
	s.mu.Lock()
	defer s.mu.Unlock()

	seeds := []model.Crop{
		{
			Name:         "Tomato",
			Category:     model.CategoryVegetable,
			PricePerUnit: 25,
			Unit:         model.UnitKg,
			Quantity:     500,
			Description:  "Vine-ripened tomatoes harvested this week, sorted and crated.",
			Location:     "Rajshahi",
			ImageURL:     "https://images.example.com/crops/tomato.jpg",
			Owner:        model.CropOwner{OwnerName: "Demo Farmer", OwnerEmail: "demo.farmer@example.com"},
		},
		{
			Name:         "Boro Rice",
			Category:     model.CategoryGrain,
			PricePerUnit: 45,
			Unit:         model.UnitKg,
			Quantity:     2000,
			Description:  "Premium boro paddy dried to storage moisture, ready for milling.",
			Location:     "Mymensingh",
			ImageURL:     "https://images.example.com/crops/boro-rice.jpg",
			Owner:        model.CropOwner{OwnerName: "Demo Farmer", OwnerEmail: "demo.farmer@example.com"},
		},
		{
			Name:         "Mango",
			Category:     model.CategoryFruit,
			PricePerUnit: 90,
			Unit:         model.UnitKg,
			Quantity:     300,
			Description:  "Himsagar mangoes picked at maturity, packed in ventilated crates.",
			Location:     "Chapainawabganj",
			ImageURL:     "https://images.example.com/crops/mango.jpg",
			Owner:        model.CropOwner{OwnerName: "Demo Orchard", OwnerEmail: "demo.orchard@example.com"},
		},
	}

	now := time.Now()
	for i := range seeds {
		crop := seeds[i]
		crop.ID = uuid.NewString()
		crop.CreatedAt = now.Add(time.Duration(i) * time.Minute)
		crop.UpdatedAt = crop.CreatedAt
		s.crops[crop.ID] = &crop
	}
}

// dataErrorResponse はデータサービスのエラーレスポンス形式。
type dataErrorResponse struct {
	Message string `json:"message"`
}

func writeDataError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(dataErrorResponse{Message: message})
}

// cropWithInterests は作物に興味一覧を埋め込んだコピーを返す。
// 呼び出し元でロックを取ること。
func (s *DataServer) cropWithInterests(crop *model.Crop) model.Crop {
	out := *crop
	out.Interests = nil
	for _, in := range s.interests {
		if in.CropID == crop.ID {
			out.Interests = append(out.Interests, *in)
		}
	}
	sort.Slice(out.Interests, func(i, j int) bool {
		return out.Interests[i].CreatedAt.Before(out.Interests[j].CreatedAt)
	})
	return out
}

// sortedCrops は全作物を作成日時の昇順で返す。呼び出し元でロックを取ること。
func (s *DataServer) sortedCrops() []model.Crop {
	crops := make([]model.Crop, 0, len(s.crops))
	for _, c := range s.crops {
		crops = append(crops, s.cropWithInterests(c))
	}
	sort.Slice(crops, func(i, j int) bool {
		return crops[i].CreatedAt.Before(crops[j].CreatedAt)
	})
	return crops
}

// handleListCrops は作物一覧を処理する。
// GET /crops?ownerEmail=...
func (s *DataServer) handleListCrops(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	crops := s.sortedCrops()
	if ownerEmail := r.URL.Query().Get("ownerEmail"); ownerEmail != "" {
		filtered := crops[:0]
		for _, c := range crops {
			if c.Owner.OwnerEmail == ownerEmail {
				filtered = append(filtered, c)
			}
		}
		crops = filtered
	}

	writeJSON(w, http.StatusOK, crops)
}

// handleLatestCrops は新着順の作物一覧を処理する。
// GET /crops/latest?limit=6
func (s *DataServer) handleLatestCrops(w http.ResponseWriter, r *http.Request) {
	limit := 6
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	crops := s.sortedCrops()
	sort.Slice(crops, func(i, j int) bool {
		return crops[i].CreatedAt.After(crops[j].CreatedAt)
	})
	if len(crops) > limit {
		crops = crops[:limit]
	}

	writeJSON(w, http.StatusOK, crops)
}

// handleGetCrop は作物1件の取得を処理する。
// GET /crops/{id}
func (s *DataServer) handleGetCrop(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	crop, ok := s.crops[chi.URLParam(r, "id")]
	if !ok {
		writeDataError(w, http.StatusNotFound, "crop not found")
		return
	}

	writeJSON(w, http.StatusOK, s.cropWithInterests(crop))
}

// handleCreateCrop は作物の登録を処理する。
// POST /crops
func (s *DataServer) handleCreateCrop(w http.ResponseWriter, r *http.Request) {
	var crop model.Crop
	if err := json.NewDecoder(r.Body).Decode(&crop); err != nil {
		writeDataError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	crop.ID = uuid.NewString()
	crop.Interests = nil
	crop.CreatedAt = now
	crop.UpdatedAt = now
	s.crops[crop.ID] = &crop

	writeJSON(w, http.StatusCreated, crop)
}

// handleUpdateCrop は作物の部分更新を処理する。所有者情報と作成日時は変更されない。
// PATCH /crops/{id}
func (s *DataServer) handleUpdateCrop(w http.ResponseWriter, r *http.Request) {
	var input model.CropInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeDataError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	crop, ok := s.crops[chi.URLParam(r, "id")]
	if !ok {
		writeDataError(w, http.StatusNotFound, "crop not found")
		return
	}

	crop.Name = input.Name
	crop.Category = input.Category
	crop.PricePerUnit = input.PricePerUnit
	crop.Unit = input.Unit
	crop.Quantity = input.Quantity
	crop.Description = input.Description
	crop.Location = input.Location
	crop.ImageURL = input.ImageURL
	crop.UpdatedAt = time.Now()

	writeJSON(w, http.StatusOK, s.cropWithInterests(crop))
}

// handleDeleteCrop は作物の削除を処理する。紐づく興味も連鎖削除する。
// DELETE /crops/{id}
func (s *DataServer) handleDeleteCrop(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := chi.URLParam(r, "id")
	if _, ok := s.crops[id]; !ok {
		writeDataError(w, http.StatusNotFound, "crop not found")
		return
	}

	delete(s.crops, id)
	for interestID, in := range s.interests {
		if in.CropID == id {
			delete(s.interests, interestID)
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleCreateInterest は興味の登録を処理する。
// POST /interests
func (s *DataServer) handleCreateInterest(w http.ResponseWriter, r *http.Request) {
	var in model.Interest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeDataError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	in.ID = uuid.NewString()
	if in.Status == "" {
		in.Status = model.StatusPending
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now()
	}
	s.interests[in.ID] = &in

	writeJSON(w, http.StatusCreated, in)
}

// handleListInterests は興味一覧を処理する。
// GET /interests?cropId=... または ?userEmail=...
func (s *DataServer) handleListInterests(w http.ResponseWriter, r *http.Request) {
	cropID := r.URL.Query().Get("cropId")
	userEmail := r.URL.Query().Get("userEmail")

	s.mu.Lock()
	defer s.mu.Unlock()

	interests := make([]model.Interest, 0)
	for _, in := range s.interests {
		if cropID != "" && in.CropID != cropID {
			continue
		}
		if userEmail != "" && in.UserEmail != userEmail {
			continue
		}
		interests = append(interests, *in)
	}
	sort.Slice(interests, func(i, j int) bool {
		return interests[i].CreatedAt.Before(interests[j].CreatedAt)
	})

	writeJSON(w, http.StatusOK, interests)
}

// handleUpdateInterestStatus は興味のステータス更新を処理する。
// PATCH /interests/{id}/status
func (s *DataServer) handleUpdateInterestStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status model.InterestStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDataError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if !req.Status.Valid() {
		writeDataError(w, http.StatusBadRequest, "unknown status value")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	in, ok := s.interests[chi.URLParam(r, "id")]
	if !ok {
		writeDataError(w, http.StatusNotFound, "interest not found")
		return
	}

	in.Status = req.Status
	writeJSON(w, http.StatusOK, *in)
}
