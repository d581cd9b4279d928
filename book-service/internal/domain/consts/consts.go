package consts

import "time"

const (
	DBCtxTimeout = 3 * time.Second

	RoleUser  = "USER"
	RoleAdmin = "ADMIN"

	DefaultPage     = 0
	DefaultPageSize = 3
	MaxPageSize     = 100
	DefaultSort     = "id"

	TokenRequestsPerSecond = 1
	TokenBurst             = 5
)

// Error categories returned in the "error" field of failed responses.
const (
	CategoryTitleExists  = "Title exists"
	CategoryNoResults    = "No results found"
	CategoryForbidden    = "Forbidden"
	CategoryValidation   = "Validation failed"
	CategoryUnauthorized = "Unauthorized"
	CategoryBadRequest   = "Bad request"
	CategoryInternal     = "Internal error"
	CategoryRateLimited  = "Too many requests"
)

// Messages returned in the "message" field.
const (
	MsgTitleExists   = "Book title already exists"
	MsgNoResults     = "Book title not found, please enter correct title that exists"
	MsgAccessDenied  = "Access denied"
	MsgInternal      = "Internal error"
	MsgRateLimited   = "Too many token requests, retry later"
	MsgMalformedBody = "Malformed request body"
)
