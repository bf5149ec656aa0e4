package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenRevoked       ErrCode = "TOKEN_REVOKED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden        ErrCode = "FORBIDDEN"
	ErrRoleNotPermitted ErrCode = "ROLE_NOT_PERMITTED"
	ErrNotSessionOwner  ErrCode = "NOT_SESSION_OWNER"
	ErrNotTestOwner     ErrCode = "NOT_TEST_OWNER"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound      ErrCode = "NOT_FOUND"
	ErrUsernameTaken ErrCode = "USERNAME_TAKEN"
	ErrEmailTaken    ErrCode = "EMAIL_TAKEN"

	// ─── Test sessions ─────────────────────────────────────────────────
	ErrTestNotFound       ErrCode = "TEST_NOT_FOUND"
	ErrTestInactive       ErrCode = "TEST_INACTIVE"
	ErrNoQuestions        ErrCode = "NO_QUESTIONS"
	ErrSessionCompleted   ErrCode = "SESSION_COMPLETED"
	ErrSessionExpired     ErrCode = "SESSION_EXPIRED"
	ErrNoActiveSession    ErrCode = "NO_ACTIVE_SESSION"
	ErrSessionNotFinished ErrCode = "SESSION_NOT_FINISHED"
	ErrUnknownQuestion    ErrCode = "UNKNOWN_QUESTION"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrInvalidCredentials:
		return "Invalid username or password."
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid or expired."
	case ErrTokenRevoked:
		return "This session has been logged out. Please sign in again."

	case ErrForbidden:
		return "You do not have access to this resource."
	case ErrRoleNotPermitted:
		return "Your role is not allowed to perform this action."
	case ErrNotSessionOwner:
		return "This test session belongs to another candidate."
	case ErrNotTestOwner:
		return "You are not the author of this test."

	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	case ErrNotFound:
		return "Resource not found."
	case ErrUsernameTaken:
		return "Username is already taken."
	case ErrEmailTaken:
		return "Email is already in use."

	case ErrTestNotFound:
		return "Test not found."
	case ErrTestInactive:
		return "This test is not active."
	case ErrNoQuestions:
		return "This test has no questions."
	case ErrSessionCompleted:
		return "This test session is already completed."
	case ErrSessionExpired:
		return "This test session has expired."
	case ErrNoActiveSession:
		return "No active test session was found for this test."
	case ErrSessionNotFinished:
		return "This test session is not completed yet."
	case ErrUnknownQuestion:
		return "The question does not belong to this test."

	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	case ErrInternal:
		return "Internal server error."
	default:
		return "Unexpected error."
	}
}
