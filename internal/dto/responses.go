package dto

import (
	"github.com/au-lex/safeqly-backend/internal/models"
	"github.com/au-lex/safeqly-backend/internal/service"
)

// ErrorResponse is the standard error envelope
type ErrorResponse struct {
	Error string `json:"error"`
}

// SuccessResponse is the standard success envelope
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// AuthResponse represents a signed-in user with tokens
type AuthResponse struct {
	User   *models.User       `json:"user"`
	Tokens *service.TokenPair `json:"tokens"`
}

// EscrowResponse represents an escrow with the platform fee applied to it
type EscrowResponse struct {
	*models.Escrow
	Fee float64 `json:"fee"`
}

// NewEscrowResponse creates an EscrowResponse
func NewEscrowResponse(escrow *models.Escrow, fee float64) *EscrowResponse {
	return &EscrowResponse{Escrow: escrow, Fee: fee}
}

// BalanceResponse represents the wallet balance
type BalanceResponse struct {
	Available float64 `json:"available"`
	Held      float64 `json:"held"`
	Total     float64 `json:"total"`
}

// DepositResponse represents an initiated deposit checkout
type DepositResponse struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
}

// UnreadCountResponse represents the unread notifications counter
type UnreadCountResponse struct {
	Count int `json:"count"`
}
