// Package validation checks candidate books before they reach the catalog.
package validation

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/azaliaz/bookcatalog/book-service/internal/domain/models"
)

const (
	MsgTitleRequired = "Title is required"
	MsgAuthorSize    = "Size must be between 4 and 20"
)

var validate = validator.New()

// Error describes the first field constraint a candidate violated.
type Error struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Field + ": " + e.Message
}

func Book(in models.BookInput) error {
	return fields(in.Title, in.Author)
}

func Patch(in models.PatchInput) error {
	return fields(in.Title, in.Author)
}

func fields(title string, author *string) error {
	if err := validate.Var(strings.TrimSpace(title), "required"); err != nil {
		return &Error{Field: "title", Message: MsgTitleRequired}
	}
	// Only an omitted author is exempt; an empty string is checked like any
	// other value. Length is counted in characters, not bytes.
	if author == nil {
		return nil
	}
	if err := validate.Var(*author, "min=4,max=20"); err != nil {
		return &Error{Field: "author", Message: MsgAuthorSize}
	}
	return nil
}
