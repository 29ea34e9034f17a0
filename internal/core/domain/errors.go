package domain

import "errors"

var (
	ErrInvalidEmail = errors.New("invalid email address")
	ErrWeakPassword = errors.New("password should be at least 6 characters")
)

// userFacing lists the errors whose text may be shown to a user as is.
var userFacing = []error{
	ErrInvalidCredentials,
	ErrUserExists,
	ErrNotAuthenticated,
	ErrInvalidEmail,
	ErrWeakPassword,
	ErrForbidden,
	ErrProfileNotFound,
	ErrInvalidStatus,
	ErrReceiptRequired,
	ErrObjectNotFound,
	ErrUnsupportedFile,
	ErrFileTooLarge,
}

// UserMessage returns the provider's own message for err when it is one of
// the user-facing errors, and fallback otherwise.
func UserMessage(err error, fallback string) string {
	for _, known := range userFacing {
		if errors.Is(err, known) {
			return capitalize(known.Error())
		}
	}
	return fallback
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
