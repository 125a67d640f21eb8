package auth

import "errors"

var (
	ErrNotFound      = errors.New("auth: not found")
	ErrAlreadyExists = errors.New("auth: already exists")
	ErrInvalidInput  = errors.New("auth: invalid input")
	ErrUnauthorized  = errors.New("auth: unauthorized")

	// ErrInvalidCredentials is the single outward rejection for every
	// login failure: unknown email, wrong password, unapproved account.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
)
