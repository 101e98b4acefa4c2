package interest

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/md-abdullah-al-ahad/krishilink-client/internal/dataservice"
	"github.com/md-abdullah-al-ahad/krishilink-client/internal/model"
)

// SortMode は買い手ビューの購入希望一覧の並び順。
type SortMode string

const (
	// SortByDate は新しい順。
	SortByDate SortMode = "date"
	// SortByStatus はpending→accepted→rejectedの順。
	// 同一ステータス内の相対順序は保持される（安定ソート）。
	SortByStatus SortMode = "status"
)

// statusRank はステータスソートの優先順位。
var statusRank = map[model.InterestStatus]int{
	model.StatusPending:  0,
	model.StatusAccepted: 1,
	model.StatusRejected: 2,
}

// CreatedFunc は購入希望の登録成功時に呼び出されるコールバック。
type CreatedFunc func(interest *model.Interest)

// Service は購入希望のサービス層。
type Service struct {
	store     dataservice.Store
	onCreated CreatedFunc
}

// NewService はServiceの新しいインスタンスを生成する。
// onCreatedはnilでもよい。
func NewService(store dataservice.Store, onCreated CreatedFunc) *Service {
	return &Service{store: store, onCreated: onCreated}
}

// Express は作物への購入希望を送信する。
// フローの前提条件と数量範囲を検証した上でデータサービスへ登録し、
// 成功時にコールバックを呼び出す。
func (s *Service) Express(ctx context.Context, buyer *model.User, cropID string, quantity float64, message string) (*model.Interest, error) {
	crop, err := s.store.GetCrop(ctx, cropID)
	if err != nil {
		return nil, err
	}

	flow, err := NewFlow(crop, buyer)
	if err != nil {
		return nil, err
	}
	if err := flow.SetDraft(quantity, message); err != nil {
		return nil, err
	}
	if err := flow.Confirm(); err != nil {
		return nil, err
	}

	interest, err := flow.Build()
	if err != nil {
		return nil, err
	}
	interest.CreatedAt = time.Now()

	created, err := s.store.CreateInterest(ctx, interest)
	if err != nil {
		return nil, err
	}

	slog.Info("interest created",
		slog.String("interest_id", created.ID),
		slog.String("crop_id", cropID),
		slog.String("buyer", buyer.Email),
	)

	if s.onCreated != nil {
		s.onCreated(created)
	}
	return created, nil
}

// ListForCrop は自分の出品作物への購入希望一覧を返す。
// 作物の所有者以外が呼び出した場合はNotCropOwnerエラーを返す。
func (s *Service) ListForCrop(ctx context.Context, user *model.User, cropID string) ([]model.Interest, error) {
	if user == nil {
		return nil, model.NewUnauthorizedError()
	}

	crop, err := s.store.GetCrop(ctx, cropID)
	if err != nil {
		return nil, err
	}
	if !crop.IsOwnedBy(user.Email) {
		return nil, model.NewNotCropOwnerError()
	}

	return s.store.ListInterestsByCrop(ctx, cropID)
}

// ListForBuyer は自分が送信した購入希望一覧を指定の並び順で返す。
func (s *Service) ListForBuyer(ctx context.Context, user *model.User, mode SortMode) ([]model.Interest, error) {
	if user == nil {
		return nil, model.NewUnauthorizedError()
	}

	interests, err := s.store.ListInterestsByBuyer(ctx, user.Email)
	if err != nil {
		return nil, err
	}

	Sort(interests, mode)
	return interests, nil
}

// Sort は購入希望一覧を並べ替える。
// SortByStatusは安定ソートのため、同一ステータス内の順序は入力順を保つ。
func Sort(interests []model.Interest, mode SortMode) {
	switch mode {
	case SortByStatus:
		sort.SliceStable(interests, func(i, j int) bool {
			return statusRank[interests[i].Status] < statusRank[interests[j].Status]
		})
	default:
		sort.SliceStable(interests, func(i, j int) bool {
			return interests[i].CreatedAt.After(interests[j].CreatedAt)
		})
	}
}

// UpdateStatus は購入希望を承認または却下する。
// 作物の所有者のみが実行でき、遷移はpendingからのみ許される。
// 既に応答済みの購入希望への操作はInterestNotPendingエラーになる。
func (s *Service) UpdateStatus(ctx context.Context, user *model.User, cropID, interestID string, status model.InterestStatus) (*model.Interest, error) {
	if user == nil {
		return nil, model.NewUnauthorizedError()
	}
	if !status.Terminal() {
		return nil, model.NewValidationError("Status must be accepted or rejected")
	}

	crop, err := s.store.GetCrop(ctx, cropID)
	if err != nil {
		return nil, err
	}
	if !crop.IsOwnedBy(user.Email) {
		return nil, model.NewNotCropOwnerError()
	}

	interests, err := s.store.ListInterestsByCrop(ctx, cropID)
	if err != nil {
		return nil, err
	}

	var target *model.Interest
	for i := range interests {
		if interests[i].ID == interestID {
			target = &interests[i]
			break
		}
	}
	if target == nil {
		return nil, model.NewInterestNotFoundError(interestID)
	}
	if target.Status != model.StatusPending {
		return nil, model.NewInterestNotPendingError(target.Status)
	}

	updated, err := s.store.UpdateInterestStatus(ctx, interestID, status)
	if err != nil {
		return nil, err
	}

	slog.Info("interest status updated",
		slog.String("interest_id", interestID),
		slog.String("status", string(status)),
	)
	return updated, nil
}
