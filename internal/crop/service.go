// Package crop は作物出品のドメインロジックを提供する。
// 検索・新着取得・出品・更新・削除と所有権チェックを含む。
package crop

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/md-abdullah-al-ahad/krishilink-client/internal/dataservice"
	"github.com/md-abdullah-al-ahad/krishilink-client/internal/model"
)

// defaultLatestLimit はホーム画面向け新着作物のデフォルト件数。
const defaultLatestLimit = 6

// Service は作物管理のサービス層。
type Service struct {
	store dataservice.Store
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(store dataservice.Store) *Service {
	return &Service{store: store}
}

// Search は作物一覧を返す。queryが空でない場合、作物名に対する
// 大文字小文字を区別しない部分一致でフィルタする。
// フィルタはサービスから全件取得した上でローカルに適用する。
func (s *Service) Search(ctx context.Context, query string) ([]model.Crop, error) {
	crops, err := s.store.ListCrops(ctx)
	if err != nil {
		return nil, err
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return crops, nil
	}

	needle := strings.ToLower(query)
	filtered := make([]model.Crop, 0, len(crops))
	for _, c := range crops {
		if strings.Contains(strings.ToLower(c.Name), needle) {
			filtered = append(filtered, c)
		}
	}
	return filtered, nil
}

// Latest は新しい順の作物を最大limit件返す。limitが0以下の場合は6件。
func (s *Service) Latest(ctx context.Context, limit int) ([]model.Crop, error) {
	if limit <= 0 {
		limit = defaultLatestLimit
	}

	crops, err := s.store.LatestCrops(ctx, limit)
	if err != nil {
		return nil, err
	}

	// サービス側の並びに依存せず、新しい順を保証する
	sort.SliceStable(crops, func(i, j int) bool {
		return crops[i].CreatedAt.After(crops[j].CreatedAt)
	})
	if len(crops) > limit {
		crops = crops[:limit]
	}
	return crops, nil
}

// Get は作物を1件取得する。
func (s *Service) Get(ctx context.Context, id string) (*model.Crop, error) {
	return s.store.GetCrop(ctx, id)
}

// ListByOwner は指定した出品者の作物一覧を返す。
func (s *Service) ListByOwner(ctx context.Context, ownerEmail string) ([]model.Crop, error) {
	return s.store.ListCropsByOwner(ctx, ownerEmail)
}

// Create は入力を検証し、認証済みユーザーを出品者として作物を登録する。
func (s *Service) Create(ctx context.Context, owner *model.User, input *model.CropInput) (*model.Crop, error) {
	if owner == nil {
		return nil, model.NewUnauthorizedError()
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}

	crop := &model.Crop{
		Name:         strings.TrimSpace(input.Name),
		Category:     input.Category,
		PricePerUnit: input.PricePerUnit,
		Unit:         input.Unit,
		Quantity:     input.Quantity,
		Description:  strings.TrimSpace(input.Description),
		Location:     strings.TrimSpace(input.Location),
		ImageURL:     strings.TrimSpace(input.ImageURL),
		Owner: model.CropOwner{
			OwnerName:  owner.DisplayName,
			OwnerEmail: owner.Email,
		},
		CreatedAt: time.Now(),
	}

	created, err := s.store.CreateCrop(ctx, crop)
	if err != nil {
		return nil, err
	}

	slog.Info("crop created",
		slog.String("crop_id", created.ID),
		slog.String("owner", owner.Email),
	)
	return created, nil
}

// Update は所有者本人による作物の更新を行う。
// 所有者以外が呼び出した場合はNotCropOwnerエラーを返す。
func (s *Service) Update(ctx context.Context, user *model.User, id string, input *model.CropInput) (*model.Crop, error) {
	if user == nil {
		return nil, model.NewUnauthorizedError()
	}

	existing, err := s.store.GetCrop(ctx, id)
	if err != nil {
		return nil, err
	}
	if !existing.IsOwnedBy(user.Email) {
		return nil, model.NewNotCropOwnerError()
	}

	if err := input.Validate(); err != nil {
		return nil, err
	}
	return s.store.UpdateCrop(ctx, id, input)
}

// Delete は所有者本人による作物の削除を行う。
// 作物に紐づく購入希望の削除はデータサービス側が連鎖的に行う。
func (s *Service) Delete(ctx context.Context, user *model.User, id string) error {
	if user == nil {
		return model.NewUnauthorizedError()
	}

	existing, err := s.store.GetCrop(ctx, id)
	if err != nil {
		return err
	}
	if !existing.IsOwnedBy(user.Email) {
		return model.NewNotCropOwnerError()
	}

	if err := s.store.DeleteCrop(ctx, id); err != nil {
		return err
	}

	slog.Info("crop deleted",
		slog.String("crop_id", id),
		slog.String("owner", user.Email),
	)
	return nil
}
