// Package model はドメインモデルを定義する。
package model

import "fmt"

// AppError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
// すべてのサービス層・クライアント層の失敗はこの型に集約される。
type AppError struct {
	Code     string // エラーコード（認証エラーはプロバイダーのauth/*コードをそのまま保持する）
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, data, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeCropNotFound       = "CROP_NOT_FOUND"
	ErrCodeInterestNotFound   = "INTEREST_NOT_FOUND"
	ErrCodeNotCropOwner       = "NOT_CROP_OWNER"
	ErrCodeOwnCropInterest    = "OWN_CROP_INTEREST"
	ErrCodeDuplicateInterest  = "DUPLICATE_INTEREST"
	ErrCodeQuantityOutOfRange = "QUANTITY_OUT_OF_RANGE"
	ErrCodeInterestNotPending = "INTEREST_NOT_PENDING"
	ErrCodeDataService        = "DATA_SERVICE_ERROR"
)

// NewAuthError は外部IDプロバイダー由来の認証エラーを生成する。
// codeにはプロバイダーのエラーコード（auth/wrong-password等）をそのまま保持し、
// messageにはユーザー向けメッセージを設定する。
func NewAuthError(code, message string) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		Category: "auth",
		Action:   "Please check your credentials and try again.",
	}
}

// NewValidationError は入力バリデーションエラーを生成する。
func NewValidationError(message string) *AppError {
	return &AppError{
		Code:     ErrCodeValidationFailed,
		Message:  message,
		Category: "validation",
		Action:   "Please correct the highlighted fields and resubmit.",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *AppError {
	return &AppError{
		Code:     ErrCodeUnauthorized,
		Message:  "You must be logged in to perform this action.",
		Category: "auth",
		Action:   "Please log in and try again.",
	}
}

// NewCropNotFoundError は作物リスティング未検出エラーを生成する。
func NewCropNotFoundError(cropID string) *AppError {
	return &AppError{
		Code:     ErrCodeCropNotFound,
		Message:  fmt.Sprintf("The crop you're looking for doesn't exist: %s", cropID),
		Category: "data",
		Action:   "Go back to the crop listing and pick another crop.",
	}
}

// NewInterestNotFoundError は興味リクエスト未検出エラーを生成する。
func NewInterestNotFoundError(interestID string) *AppError {
	return &AppError{
		Code:     ErrCodeInterestNotFound,
		Message:  fmt.Sprintf("The interest request was not found: %s", interestID),
		Category: "data",
		Action:   "Refresh the interest list and try again.",
	}
}

// NewNotCropOwnerError は所有者以外による編集・削除・承認操作のエラーを生成する。
func NewNotCropOwnerError() *AppError {
	return &AppError{
		Code:     ErrCodeNotCropOwner,
		Message:  "Only the owner of this crop can perform this action.",
		Category: "auth",
		Action:   "Log in with the account that created this listing.",
	}
}

// NewOwnCropInterestError は所有者自身の興味送信エラーを生成する。
func NewOwnCropInterestError() *AppError {
	return &AppError{
		Code:     ErrCodeOwnCropInterest,
		Message:  "You cannot express interest in your own listing.",
		Category: "validation",
		Action:   "Browse other crops to express interest.",
	}
}

// NewDuplicateInterestError は同一作物への重複興味送信エラーを生成する。
func NewDuplicateInterestError() *AppError {
	return &AppError{
		Code:     ErrCodeDuplicateInterest,
		Message:  "You've already expressed interest in this crop. The seller will contact you soon.",
		Category: "validation",
		Action:   "Check My Interests for the status of your request.",
	}
}

// NewQuantityOutOfRangeError は数量範囲外エラーを生成する。
func NewQuantityOutOfRangeError(available float64, unit string) *AppError {
	return &AppError{
		Code:     ErrCodeQuantityOutOfRange,
		Message:  fmt.Sprintf("Quantity must be between 1 and %g %s.", available, unit),
		Category: "validation",
		Action:   "Enter a quantity within the available amount.",
	}
}

// NewInterestNotPendingError は非pending状態への承認・却下エラーを生成する。
func NewInterestNotPendingError(status InterestStatus) *AppError {
	return &AppError{
		Code:     ErrCodeInterestNotPending,
		Message:  fmt.Sprintf("This interest has already been %s.", status),
		Category: "data",
		Action:   "Refresh the page to see the latest status.",
	}
}

// NewDataServiceError はデータサービス呼び出し失敗エラーを生成する。
// messageにはバックエンドが返したメッセージをそのまま保持する。
func NewDataServiceError(message string) *AppError {
	if message == "" {
		message = "Something went wrong while contacting the crop service."
	}
	return &AppError{
		Code:     ErrCodeDataService,
		Message:  message,
		Category: "data",
		Action:   "Please wait a moment and try again.",
	}
}
