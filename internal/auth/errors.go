package auth

import "errors"

var (
	// ErrInvalidCredentials covers both an unknown email and a failed hash
	// comparison; callers must never be able to tell which one happened.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrInvalidCurrentPassword is returned by ChangePassword when the
	// supplied current password does not match the stored hash.
	ErrInvalidCurrentPassword = errors.New("auth: invalid current password")

	// ErrInvalidToken indicates the token failed signature or claim validation.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrInvalidInput flags a request the service refuses before touching
	// the directory, such as a missing identity id or a too-short password.
	ErrInvalidInput = errors.New("auth: invalid input")
)
