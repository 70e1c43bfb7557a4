package utils

import (
	"encoding/json"
	"net/http"
	"time"

	"kanzey-ticketing/internal/apperr"
)

type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func SuccessResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	}
}

func ErrorResponse(message, error string) APIResponse {
	return APIResponse{
		Success:   false,
		Message:   message,
		Error:     error,
		Timestamp: time.Now(),
	}
}

func WriteJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func WriteSuccess(w http.ResponseWriter, status int, message string, data interface{}) {
	WriteJSON(w, status, SuccessResponse(message, data))
}

func WriteError(w http.ResponseWriter, status int, message, errCode string) {
	WriteJSON(w, status, ErrorResponse(message, errCode))
}

// WriteAppError maps an application error onto its HTTP status and public message.
func WriteAppError(w http.ResponseWriter, err error) {
	WriteError(w, apperr.HTTPStatus(err), apperr.PublicMessage(err), string(apperr.KindOf(err)))
}

// WriteResult writes data under a failed envelope, for rejections that still carry a payload.
func WriteResult(w http.ResponseWriter, status int, success bool, message string, data interface{}) {
	resp := SuccessResponse(message, data)
	resp.Success = success
	WriteJSON(w, status, resp)
}
