package models

import (
	"math"
	"strings"
)

type Book struct {
	ID      string `json:"id,omitempty"`
	Title   string `json:"title"`
	Author  string `json:"author"`
	Details string `json:"details"`
}

// BookPatch carries the fields an update may replace. Details are never
// touched by an update.
type BookPatch struct {
	Title  string `json:"title"`
	Author string `json:"author"`
}

// BookInput is a book as received from a client. Author is nil when the
// field was omitted or null, which is not the same as an empty string.
type BookInput struct {
	Title   string  `json:"title"`
	Author  *string `json:"author"`
	Details string  `json:"details"`
}

func (in BookInput) Book() Book {
	return Book{Title: in.Title, Author: deref(in.Author), Details: in.Details}
}

type PatchInput struct {
	Title  string  `json:"title"`
	Author *string `json:"author"`
}

func (in PatchInput) Patch() BookPatch {
	return BookPatch{Title: in.Title, Author: deref(in.Author)}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

type Principal struct {
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

func (p Principal) Authenticated() bool {
	return p.Username != ""
}

type SortDir int

const (
	Asc SortDir = iota
	Desc
)

func (d SortDir) String() string {
	if d == Desc {
		return "desc"
	}
	return "asc"
}

// ParseSortDir accepts "asc" and "desc" in any case.
func ParseSortDir(s string) (SortDir, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc":
		return Asc, true
	case "desc":
		return Desc, true
	}
	return Asc, false
}

type Sort struct {
	Field string
	Dir   SortDir
}

// Filter narrows a paged listing. An empty field is absent. A record matches
// when any present field equals the record's value.
type Filter struct {
	Title  string
	Author string
}

func (f Filter) Match(b Book) bool {
	if f.Title == "" && f.Author == "" {
		return true
	}
	return (f.Title != "" && f.Title == b.Title) || (f.Author != "" && f.Author == b.Author)
}

type PageQuery struct {
	Filter Filter
	Page   int
	Size   int
	Sort   Sort
}

// Offset is the number of records before the page. It saturates at
// math.MaxInt instead of wrapping for very large page numbers.
func (q PageQuery) Offset() int {
	if q.Page <= 0 || q.Size <= 0 {
		return 0
	}
	if q.Page > math.MaxInt/q.Size {
		return math.MaxInt
	}
	return q.Page * q.Size
}
