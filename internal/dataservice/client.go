// Package dataservice は作物・購入希望データを管理する外部RESTサービスの
// クライアントを提供する。データの保存・取得はすべてこのサービスに委譲し、
// ローカルにはキャッシュもリトライも持たない。
package dataservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/md-abdullah-al-ahad/krishilink-client/internal/model"
)

// Store は作物・購入希望データの操作を定義する。
// ハンドラーとサービス層はこのインターフェースに依存し、
// テストではモック実装に差し替える。
type Store interface {
	ListCrops(ctx context.Context) ([]model.Crop, error)
	ListCropsByOwner(ctx context.Context, ownerEmail string) ([]model.Crop, error)
	LatestCrops(ctx context.Context, limit int) ([]model.Crop, error)
	GetCrop(ctx context.Context, id string) (*model.Crop, error)
	CreateCrop(ctx context.Context, crop *model.Crop) (*model.Crop, error)
	UpdateCrop(ctx context.Context, id string, input *model.CropInput) (*model.Crop, error)
	DeleteCrop(ctx context.Context, id string) error
	CreateInterest(ctx context.Context, interest *model.Interest) (*model.Interest, error)
	ListInterestsByCrop(ctx context.Context, cropID string) ([]model.Interest, error)
	ListInterestsByBuyer(ctx context.Context, userEmail string) ([]model.Interest, error)
	UpdateInterestStatus(ctx context.Context, id string, status model.InterestStatus) (*model.Interest, error)
}

// Client はデータサービスのHTTPクライアント。
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// コンパイル時のインターフェース実装チェック
var _ Store = (*Client)(nil)

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

// ListCrops は全作物を取得する。
func (c *Client) ListCrops(ctx context.Context) ([]model.Crop, error) {
	var crops []model.Crop
	if err := c.doJSON(ctx, http.MethodGet, "/crops", nil, &crops); err != nil {
		return nil, err
	}
	return crops, nil
}

// ListCropsByOwner は指定した出品者の作物を取得する。
func (c *Client) ListCropsByOwner(ctx context.Context, ownerEmail string) ([]model.Crop, error) {
	path := "/crops?ownerEmail=" + url.QueryEscape(ownerEmail)
	var crops []model.Crop
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &crops); err != nil {
		return nil, err
	}
	return crops, nil
}

// LatestCrops は新着順の作物を最大limit件取得する。
func (c *Client) LatestCrops(ctx context.Context, limit int) ([]model.Crop, error) {
	path := "/crops/latest?limit=" + strconv.Itoa(limit)
	var crops []model.Crop
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &crops); err != nil {
		return nil, err
	}
	return crops, nil
}

// GetCrop は作物を1件取得する。存在しない場合はCropNotFoundエラーを返す。
func (c *Client) GetCrop(ctx context.Context, id string) (*model.Crop, error) {
	var crop model.Crop
	if err := c.doJSON(ctx, http.MethodGet, "/crops/"+url.PathEscape(id), nil, &crop); err != nil {
		return nil, err
	}
	return &crop, nil
}

// CreateCrop は作物を登録する。
func (c *Client) CreateCrop(ctx context.Context, crop *model.Crop) (*model.Crop, error) {
	var created model.Crop
	if err := c.doJSON(ctx, http.MethodPost, "/crops", crop, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateCrop は作物を部分更新する。
func (c *Client) UpdateCrop(ctx context.Context, id string, input *model.CropInput) (*model.Crop, error) {
	var updated model.Crop
	if err := c.doJSON(ctx, http.MethodPatch, "/crops/"+url.PathEscape(id), input, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteCrop は作物を削除する。関連する購入希望の削除はサービス側が行う。
func (c *Client) DeleteCrop(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/crops/"+url.PathEscape(id), nil, nil)
}

// CreateInterest は購入希望を登録する。
func (c *Client) CreateInterest(ctx context.Context, interest *model.Interest) (*model.Interest, error) {
	var created model.Interest
	if err := c.doJSON(ctx, http.MethodPost, "/interests", interest, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// ListInterestsByCrop は指定作物への購入希望を取得する。
func (c *Client) ListInterestsByCrop(ctx context.Context, cropID string) ([]model.Interest, error) {
	path := "/interests?cropId=" + url.QueryEscape(cropID)
	var interests []model.Interest
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &interests); err != nil {
		return nil, err
	}
	return interests, nil
}

// ListInterestsByBuyer は指定ユーザーが出した購入希望を取得する。
func (c *Client) ListInterestsByBuyer(ctx context.Context, userEmail string) ([]model.Interest, error) {
	path := "/interests?userEmail=" + url.QueryEscape(userEmail)
	var interests []model.Interest
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &interests); err != nil {
		return nil, err
	}
	return interests, nil
}

// UpdateInterestStatus は購入希望のステータスを更新する。
func (c *Client) UpdateInterestStatus(ctx context.Context, id string, status model.InterestStatus) (*model.Interest, error) {
	body := map[string]model.InterestStatus{"status": status}
	var updated model.Interest
	if err := c.doJSON(ctx, http.MethodPatch, "/interests/"+url.PathEscape(id)+"/status", body, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// doJSON はJSONリクエストを実行し、レスポンスをoutへデコードする。
// outがnilの場合はボディを読み捨てる。
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	// リクエストボディ構築
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("リクエストボディのエンコードに失敗しました: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	// HTTPリクエスト作成
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	// HTTPリクエスト実行
	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Error("data service request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return model.NewDataServiceError("")
	}
	defer resp.Body.Close()

	// HTTPステータスチェック
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.decodeServiceError(resp, method, path)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	// JSONデコード
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		slog.Error("failed to decode data service response",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return model.NewDataServiceError("")
	}
	return nil
}

// errorPayload はデータサービスのエラーレスポンス形式。
type errorPayload struct {
	Message string `json:"message"`
}

// decodeServiceError はエラーレスポンスをAppErrorへ変換する。
// 404はリソース種別に応じたNotFoundエラー、それ以外は
// サービスのメッセージを乗せたDataServiceエラーになる。
func (c *Client) decodeServiceError(resp *http.Response, method, path string) error {
	var payload errorPayload
	if body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16)); err == nil {
		json.Unmarshal(body, &payload)
	}

	slog.Warn("data service returned error status",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("http_status", resp.StatusCode),
	)

	if resp.StatusCode == http.StatusNotFound {
		id := resourceIDFromPath(path)
		if isInterestPath(path) {
			return model.NewInterestNotFoundError(id)
		}
		return model.NewCropNotFoundError(id)
	}
	return model.NewDataServiceError(payload.Message)
}

func isInterestPath(path string) bool {
	return strings.HasPrefix(path, "/interests")
}

// resourceIDFromPath はリクエストパスからリソースIDを取り出す。
// "/crops/{id}" や "/interests/{id}/status" の形式を想定し、
// ID部分が無い場合は空文字列を返す。
func resourceIDFromPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) < 2 {
		return ""
	}
	id, err := url.PathUnescape(segments[1])
	if err != nil {
		return segments[1]
	}
	return id
}
