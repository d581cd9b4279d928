package storerrors

import "errors"

var (
	ErrBookNoExist      = errors.New("book does not exists")
	ErrTitleExists      = errors.New("book title already exists")
	ErrInvalidSortField = errors.New("invalid sort field")
)
