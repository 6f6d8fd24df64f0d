package dto

// GenerateOTPRequest represents the request to issue a one-time code
type GenerateOTPRequest struct {
	Email string `json:"email"`
}

// AskRequest represents a question gated by a one-time code
type AskRequest struct {
	Question string `json:"question"`
	Email    string `json:"email"`
	OTP      string `json:"otp"`
}
