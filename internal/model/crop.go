// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// CropCategory は作物の分類を表す。
type CropCategory string

const (
	// CategoryVegetable は野菜。
	CategoryVegetable CropCategory = "Vegetable"
	// CategoryFruit は果物。
	CategoryFruit CropCategory = "Fruit"
	// CategoryGrain は穀物。
	CategoryGrain CropCategory = "Grain"
	// CategoryCashCrop は換金作物。
	CategoryCashCrop CropCategory = "Cash Crop"
	// CategoryOther はその他。
	CategoryOther CropCategory = "Other"
)

// Valid は既知のカテゴリかどうかを返す。
func (c CropCategory) Valid() bool {
	switch c {
	case CategoryVegetable, CategoryFruit, CategoryGrain, CategoryCashCrop, CategoryOther:
		return true
	}
	return false
}

// CropUnit は数量の単位を表す。
type CropUnit string

const (
	UnitKg      CropUnit = "kg"
	UnitTon     CropUnit = "ton"
	UnitBag     CropUnit = "bag"
	UnitQuintal CropUnit = "quintal"
	UnitPiece   CropUnit = "piece"
)

// Valid は既知の単位かどうかを返す。
func (u CropUnit) Valid() bool {
	switch u {
	case UnitKg, UnitTon, UnitBag, UnitQuintal, UnitPiece:
		return true
	}
	return false
}

// CropOwner は作物リスティングの所有者情報を表す。
// 作成時点のUserの非正規化コピーであり、OwnerEmailは作成後不変。
// 所有者チェック（編集・削除・承認の権限）はOwnerEmailで行う。
type CropOwner struct {
	OwnerName  string `json:"ownerName"`
	OwnerEmail string `json:"ownerEmail"`
}

// Crop は販売出品された作物リスティングを表す。
type Crop struct {
	ID           string       `json:"_id"`
	Name         string       `json:"name"`
	Category     CropCategory `json:"type"`
	PricePerUnit float64      `json:"pricePerUnit"`
	Unit         CropUnit     `json:"unit"`
	Quantity     float64      `json:"quantity"`
	Description  string       `json:"description"`
	Location     string       `json:"location"`
	ImageURL     string       `json:"image"`
	Owner        CropOwner    `json:"owner"`
	Interests    []Interest   `json:"interests,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// IsOwnedBy は指定されたメールアドレスがこの作物の所有者かどうかを返す。
func (c *Crop) IsOwnedBy(email string) bool {
	return c.Owner.OwnerEmail != "" && c.Owner.OwnerEmail == email
}

// HasInterestFrom は指定された買い手が既に興味を送信済みかどうかを返す。
// クライアント側のみのチェックであり、並行する別クライアントとの競合は防げない。
func (c *Crop) HasInterestFrom(email string) bool {
	for _, in := range c.Interests {
		if in.UserEmail == email {
			return true
		}
	}
	return false
}

// minDescriptionLength は説明文の最低文字数。
const minDescriptionLength = 20

// CropInput はリスティングの作成・編集フォーム入力を表す。
type CropInput struct {
	Name         string       `json:"name"`
	Category     CropCategory `json:"type"`
	PricePerUnit float64      `json:"pricePerUnit"`
	Unit         CropUnit     `json:"unit"`
	Quantity     float64      `json:"quantity"`
	Description  string       `json:"description"`
	Location     string       `json:"location"`
	ImageURL     string       `json:"image"`
}

// Validate はフォーム入力を検証し、最初の違反をValidationErrorとして返す。
// 例外を投げるのではなくエラー値で失敗を報告する。
func (in *CropInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return NewValidationError("Crop name is required")
	}
	if !in.Category.Valid() {
		return NewValidationError("Crop type is required")
	}
	if in.PricePerUnit <= 0 {
		return NewValidationError("Price must be greater than 0")
	}
	if !in.Unit.Valid() {
		return NewValidationError("Unit is required")
	}
	if in.Quantity <= 0 {
		return NewValidationError("Quantity must be greater than 0")
	}
	if strings.TrimSpace(in.Description) == "" {
		return NewValidationError("Description is required")
	}
	if len(strings.TrimSpace(in.Description)) < minDescriptionLength {
		return NewValidationError("Description must be at least 20 characters")
	}
	if strings.TrimSpace(in.Location) == "" {
		return NewValidationError("Location is required")
	}
	if strings.TrimSpace(in.ImageURL) == "" {
		return NewValidationError("Image URL is required")
	}
	if !strings.HasPrefix(in.ImageURL, "http://") && !strings.HasPrefix(in.ImageURL, "https://") {
		return NewValidationError("Please enter a valid URL starting with http:// or https://")
	}
	return nil
}
