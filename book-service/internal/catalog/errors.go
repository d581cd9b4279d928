package catalog

import "errors"

var (
	ErrDuplicateTitle = errors.New("book title already exists")
	ErrNotFound       = errors.New("book title not found, please enter correct title that exists")
	ErrForbidden      = errors.New("access denied")
)
