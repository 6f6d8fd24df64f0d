package dto

// GenerateOTPResponse is returned after a code was issued.
// ExpiresIn is in milliseconds so the client can render a countdown.
type GenerateOTPResponse struct {
	Message   string `json:"message"`
	ExpiresIn int64  `json:"expiresIn"`
}

// AnswerResponse carries the model answer or a user-facing refusal
type AnswerResponse struct {
	Answer         string `json:"answer"`
	JavaRestricted bool   `json:"javaRestricted,omitempty"`
	OTPRequired    bool   `json:"otpRequired,omitempty"`
	RenewChallenge *bool  `json:"renewChallenge,omitempty"`
	Code           string `json:"code,omitempty"`
}

// ErrorResponse is the generic error body
type ErrorResponse struct {
	Error string `json:"error"`
}

// PolicyResponse exposes the topic denylist for the client-side pre-check
type PolicyResponse struct {
	Denylist []string `json:"denylist"`
	Refusal  string   `json:"refusal"`
}

// HealthResponse is the health check body
type HealthResponse struct {
	Status string `json:"status"`
}
