// Package interest は購入希望のライフサイクルを管理する。
// 下書き→確認→送信の明示的なフローと、売り手による承認・却下の
// 状態遷移ロジックを含む。
package interest

import (
	"strings"

	"github.com/md-abdullah-al-ahad/krishilink-client/internal/model"
)

// FlowState は購入希望送信フローの状態を表す。
// 暗黙のブール値フラグの組み合わせではなく、明示的な状態として扱う。
type FlowState string

const (
	// StateDrafting は数量とメッセージの入力中。
	StateDrafting FlowState = "drafting"
	// StateConfirming は合計金額を提示して最終確認中。
	StateConfirming FlowState = "confirming"
	// StateSubmitting はデータサービスへの送信中。
	StateSubmitting FlowState = "submitting"
)

// Flow は1つの作物に対する購入希望の送信フロー。
// 生成時に前提条件（認証済み・自分の出品でない・重複でない）を検証し、
// 以後はDrafting→Confirming→Submittingの順にのみ遷移する。
type Flow struct {
	crop     *model.Crop
	buyer    *model.User
	quantity float64
	message  string
	state    FlowState
}

// NewFlow は購入希望フローを開始する。
// 前提条件を満たさない場合はAppErrorを返す。
func NewFlow(crop *model.Crop, buyer *model.User) (*Flow, error) {
	if buyer == nil {
		return nil, model.NewUnauthorizedError()
	}
	if crop.IsOwnedBy(buyer.Email) {
		return nil, model.NewOwnCropInterestError()
	}
	if crop.HasInterestFrom(buyer.Email) {
		return nil, model.NewDuplicateInterestError()
	}
	return &Flow{crop: crop, buyer: buyer, state: StateDrafting}, nil
}

// State は現在のフロー状態を返す。
func (f *Flow) State() FlowState {
	return f.state
}

// SetDraft は希望数量とメッセージを設定する。Drafting状態でのみ有効。
// 数量は1以上かつ出品数量以下でなければならない。
func (f *Flow) SetDraft(quantity float64, message string) error {
	if f.state != StateDrafting {
		return model.NewValidationError("Request is no longer editable")
	}
	if quantity < 1 || quantity > f.crop.Quantity {
		return model.NewQuantityOutOfRangeError(f.crop.Quantity, string(f.crop.Unit))
	}
	f.quantity = quantity
	f.message = strings.TrimSpace(message)
	return nil
}

// Total は確認画面に提示する合計金額を返す。
// 希望数量×単価の正確な積であり、丸めは行わない。
func (f *Flow) Total() float64 {
	return f.quantity * f.crop.PricePerUnit
}

// Confirm は入力を確定し、確認状態へ進む。
func (f *Flow) Confirm() error {
	if f.state != StateDrafting {
		return model.NewValidationError("Request is not in a confirmable state")
	}
	if f.quantity == 0 {
		return model.NewQuantityOutOfRangeError(f.crop.Quantity, string(f.crop.Unit))
	}
	f.state = StateConfirming
	return nil
}

// Back は確認状態から入力状態へ戻る。
func (f *Flow) Back() {
	if f.state == StateConfirming {
		f.state = StateDrafting
	}
}

// Build は送信状態へ遷移し、データサービスへ送る購入希望を組み立てる。
func (f *Flow) Build() (*model.Interest, error) {
	if f.state != StateConfirming {
		return nil, model.NewValidationError("Request has not been confirmed")
	}
	f.state = StateSubmitting

	return &model.Interest{
		CropID:     f.crop.ID,
		CropName:   f.crop.Name,
		OwnerName:  f.crop.Owner.OwnerName,
		OwnerEmail: f.crop.Owner.OwnerEmail,
		UserEmail:  f.buyer.Email,
		UserName:   f.buyer.DisplayName,
		Quantity:   f.quantity,
		Message:    f.message,
		Status:     model.StatusPending,
	}, nil
}
