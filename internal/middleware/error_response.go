package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/campuslink/internal/model"
)

// WriteJSON は値をJSONで書き込む。
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError は {"message": "..."} 形式のエラーレスポンスを書き込む。
// クライアントのゲートウェイはこのmessageを400などの表示文言として使う。
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, model.ErrorBody{Message: message})
}

// WriteInternalServerError は500レスポンスを書き込む。詳細はログのみに記録する。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteError(w, http.StatusInternalServerError, "Server error")
}
