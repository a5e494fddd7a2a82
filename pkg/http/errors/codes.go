package errors

// Error codes returned in the "error" field of every failure response.
const (
	// Authentication
	ErrCodeUnauthorized           = "unauthorized"
	ErrCodeForbidden              = "forbidden"
	ErrCodeInvalidToken           = "invalid_token"
	ErrCodeTokenExpired           = "token_expired"
	ErrCodeAuthenticationRequired = "authentication_required"
	ErrCodeInvalidCredentials     = "invalid_credentials"
	ErrCodeAccountDisabled        = "account_disabled"
	ErrCodeRefreshFailed          = "refresh_failed"
	ErrCodeResetFailed            = "reset_failed"
	ErrCodeWeakPassword           = "weak_password"
	ErrCodeRateLimited            = "rate_limited"

	// Validation
	ErrCodeInvalidRequest   = "invalid_request"
	ErrCodeValidationFailed = "validation_failed"

	// Resources
	ErrCodeNotFound        = "not_found"
	ErrCodeUserNotFound    = "user_not_found"
	ErrCodeQuizNotFound    = "quiz_not_found"
	ErrCodePromptNotFound  = "prompt_not_found"
	ErrCodeAttemptNotFound = "attempt_not_found"
	ErrCodeAlreadyExists   = "already_exists"
	ErrCodeConflict        = "conflict"
	ErrCodeUsernameTaken   = "username_taken"
	ErrCodeEmailTaken      = "email_taken"

	// Quizzes
	ErrCodeGenerationFailed = "generation_failed"
	ErrCodeSubmitFailed     = "submit_failed"
	ErrCodeInvalidRating    = "invalid_rating"

	// OAuth
	ErrCodeOAuthNotConfigured  = "oauth_not_configured"
	ErrCodeOAuthCallbackFailed = "oauth_callback_failed"
	ErrCodeOAuthMissingCode    = "missing_code"
	ErrCodeOAuthInvalidState   = "invalid_state"
	ErrCodeOAuthMissingEmail   = "oauth_email_required"
	ErrCodeOAuthLinkConflict   = "oauth_link_conflict"

	// Leaderboard
	ErrCodeUnknownWindow = "unknown_leaderboard_window"

	// Server
	ErrCodeInternalError      = "internal_error"
	ErrCodeServiceUnavailable = "service_unavailable"
	ErrCodeUpstreamError      = "upstream_error"
)
