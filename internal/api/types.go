package api

import (
	"time"

	"github.com/satriahrh/papantulis/server/domain/entities"
)

// SetLanguageRequest represents the request payload for changing the narration language
type SetLanguageRequest struct {
	Lang string `json:"lang"`
}

// SetLanguageResponse echoes the stored language
type SetLanguageResponse struct {
	Status string `json:"status"`
	Lang   string `json:"lang"`
}

// CreateBoardResponse carries a new board together with its live channel token
type CreateBoardResponse struct {
	Board     *entities.Board `json:"board"`
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
