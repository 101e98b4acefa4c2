// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/md-abdullah-al-ahad/krishilink-client/internal/model"
)

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// writeAppErrorResponse は統一エラーフォーマットでレスポンスを書き込む。
func writeAppErrorResponse(w http.ResponseWriter, statusCode int, appErr *model.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     appErr.Code,
		Message:  appErr.Message,
		Category: appErr.Category,
		Action:   appErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var appErr *model.AppError
	if errors.As(err, &appErr) {
		writeAppErrorResponse(w, mapAppErrorToHTTPStatus(appErr), appErr)
		return
	}

	// AppError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAppErrorResponse(w, http.StatusInternalServerError, &model.AppError{
		Code:     "INTERNAL_ERROR",
		Message:  "An internal error occurred.",
		Category: "system",
		Action:   "Please wait a moment and try again.",
	})
}

// mapAppErrorToHTTPStatus はAppErrorコードからHTTPステータスコードにマッピングする。
func mapAppErrorToHTTPStatus(appErr *model.AppError) int {
	switch appErr.Code {
	case model.ErrCodeValidationFailed, model.ErrCodeQuantityOutOfRange:
		return http.StatusBadRequest
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeNotCropOwner, model.ErrCodeOwnCropInterest:
		return http.StatusForbidden
	case model.ErrCodeCropNotFound, model.ErrCodeInterestNotFound:
		return http.StatusNotFound
	case model.ErrCodeDuplicateInterest, model.ErrCodeInterestNotPending:
		return http.StatusConflict
	case model.ErrCodeDataService:
		return http.StatusBadGateway
	}

	// IDプロバイダー由来のエラーコード
	switch appErr.Code {
	case "auth/email-already-in-use":
		return http.StatusConflict
	case "auth/invalid-email", "auth/weak-password", "auth/missing-password",
		"auth/popup-closed-by-user", "auth/cancelled-popup-request":
		return http.StatusBadRequest
	case "auth/user-disabled":
		return http.StatusForbidden
	case "auth/too-many-requests":
		return http.StatusTooManyRequests
	case "auth/network-request-failed":
		return http.StatusBadGateway
	}
	if strings.HasPrefix(appErr.Code, "auth/") {
		// wrong-password, user-not-found, invalid-credential など
		return http.StatusUnauthorized
	}

	return http.StatusInternalServerError
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}
