// Package access decides whether a principal may perform a restricted
// catalog operation.
package access

import (
	"slices"

	"github.com/azaliaz/bookcatalog/book-service/internal/domain/models"
)

type Policy struct{}

func New() Policy {
	return Policy{}
}

// HasRole reports whether the principal carries the role. Role names are
// matched exactly; an anonymous principal has no roles.
func (Policy) HasRole(p models.Principal, role string) bool {
	return slices.Contains(p.Roles, role)
}
