package dto

// SignupRequest represents the request to create an account
type SignupRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	FullName string `json:"full_name" binding:"required"`
	UserTag  string `json:"user_tag" binding:"required"`
	Phone    string `json:"phone"`
}

// LoginRequest represents the request to sign in
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// VerifyEmailRequest represents the OTP confirmation request
type VerifyEmailRequest struct {
	Email string `json:"email" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

// ResendOTPRequest represents the request to re-send the verification code
type ResendOTPRequest struct {
	Email string `json:"email" binding:"required"`
}

// RefreshRequest represents the token refresh request
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// ForgotPasswordRequest represents the request to start a password reset
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required"`
}

// ResetPasswordRequest represents the request to finish a password reset
type ResetPasswordRequest struct {
	Email       string `json:"email" binding:"required"`
	Code        string `json:"code" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// ChangePasswordRequest represents the request to change the password
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// UpdateProfileRequest represents the request to update the profile
type UpdateProfileRequest struct {
	FullName  *string `json:"full_name"`
	Phone     *string `json:"phone"`
	AvatarURL *string `json:"avatar_url"`
}

// CreateEscrowRequest represents the request to open an escrow
type CreateEscrowRequest struct {
	SellerTag        string  `json:"seller_tag" binding:"required"`
	Amount           float64 `json:"amount" binding:"required"`
	Items            string  `json:"items" binding:"required"`
	DeliveryDate     string  `json:"delivery_date" binding:"required"`
	AttachedFileURL  *string `json:"attached_file_url"`
	AttachedFileName *string `json:"attached_file_name"`
}

// RejectEscrowRequest represents the seller's rejection with a reason
type RejectEscrowRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// RaiseDisputeRequest represents the request to open a dispute
type RaiseDisputeRequest struct {
	EscrowID         string  `json:"escrow_id" binding:"required"`
	Reason           string  `json:"reason" binding:"required"`
	Description      string  `json:"description" binding:"required"`
	EvidenceURL      *string `json:"evidence_url"`
	EvidenceFileName *string `json:"evidence_file_name"`
}

// AttachEvidenceRequest represents the request to add evidence to a dispute
type AttachEvidenceRequest struct {
	EvidenceURL      string `json:"evidence_url" binding:"required"`
	EvidenceFileName string `json:"evidence_file_name" binding:"required"`
}

// ResolveDisputeRequest represents the admin's verdict on a dispute
type ResolveDisputeRequest struct {
	Winner     string `json:"winner" binding:"required"`
	Resolution string `json:"resolution" binding:"required"`
}

// RejectDisputeRequest represents the admin's dismissal of a dispute claim
type RejectDisputeRequest struct {
	Resolution string `json:"resolution" binding:"required"`
}

// InitiateDepositRequest represents the request to top up the wallet
type InitiateDepositRequest struct {
	Amount float64 `json:"amount" binding:"required"`
}

// AddBankAccountRequest represents the request to link a bank account
type AddBankAccountRequest struct {
	BankName      string `json:"bank_name" binding:"required"`
	BankCode      string `json:"bank_code" binding:"required"`
	AccountNumber string `json:"account_number" binding:"required"`
}

// WithdrawRequest represents the request to withdraw to a bank account
type WithdrawRequest struct {
	Amount        float64 `json:"amount" binding:"required"`
	BankAccountID string  `json:"bank_account_id" binding:"required"`
}
