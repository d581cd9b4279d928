// Package catalog holds the business rules of the book catalog: title
// uniqueness, update semantics, the filtered listing and the role gate on
// deletion.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/azaliaz/bookcatalog/book-service/internal/domain/consts"
	"github.com/azaliaz/bookcatalog/book-service/internal/domain/models"
	storerrors "github.com/azaliaz/bookcatalog/book-service/internal/storage/errors"
)

//go:generate mockgen -source=service.go -destination=./mocks/storage_mock.go -package=mocks

// Storage persists book records. Save must check title uniqueness and write
// in one atomic step.
type Storage interface {
	ListAll(ctx context.Context) ([]models.Book, error)
	FindByTitle(ctx context.Context, title string) (models.Book, error)
	Save(ctx context.Context, book models.Book) (models.Book, error)
	DeleteByTitle(ctx context.Context, title string) error
	FindFiltered(ctx context.Context, q models.PageQuery) ([]models.Book, int, error)
}

type Policy interface {
	HasRole(p models.Principal, role string) bool
}

type Service struct {
	store  Storage
	policy Policy
	tracer trace.Tracer
}

func New(store Storage, policy Policy) *Service {
	return &Service{
		store:  store,
		policy: policy,
		tracer: otel.Tracer("github.com/azaliaz/bookcatalog/book-service/internal/catalog"),
	}
}

func (s *Service) ListAll(ctx context.Context) ([]models.Book, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.ListAll")
	defer span.End()

	books, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("list books: %w", err))
	}
	return books, nil
}

func (s *Service) GetDetails(ctx context.Context, title string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.GetDetails", trace.WithAttributes(attribute.String("book.title", title)))
	defer span.End()

	book, err := s.lookup(ctx, title)
	if err != nil {
		return "", s.fail(span, err)
	}
	return book.Details, nil
}

func (s *Service) Create(ctx context.Context, candidate models.Book) (models.Book, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.Create", trace.WithAttributes(attribute.String("book.title", candidate.Title)))
	defer span.End()

	_, err := s.lookup(ctx, candidate.Title)
	switch {
	case err == nil:
		return models.Book{}, s.fail(span, ErrDuplicateTitle)
	case !errors.Is(err, ErrNotFound):
		return models.Book{}, s.fail(span, err)
	}

	candidate.ID = ""
	book, err := s.store.Save(ctx, candidate)
	if err != nil {
		return models.Book{}, s.fail(span, translate(err, "create book"))
	}
	span.SetAttributes(attribute.String("book.id", book.ID))
	return book, nil
}

// Update replaces title and author of the record stored under title. The id
// and details of the record are kept.
func (s *Service) Update(ctx context.Context, title string, patch models.BookPatch) (models.Book, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.Update", trace.WithAttributes(attribute.String("book.title", title)))
	defer span.End()

	book, err := s.lookup(ctx, title)
	if err != nil {
		return models.Book{}, s.fail(span, err)
	}

	book.Title = patch.Title
	book.Author = patch.Author
	updated, err := s.store.Save(ctx, book)
	if err != nil {
		return models.Book{}, s.fail(span, translate(err, "update book"))
	}
	return updated, nil
}

// Delete removes the record stored under title. Only ADMIN principals may
// delete; the role is checked before the catalog is consulted.
func (s *Service) Delete(ctx context.Context, title string, principal models.Principal) error {
	ctx, span := s.tracer.Start(ctx, "catalog.Delete", trace.WithAttributes(attribute.String("book.title", title)))
	defer span.End()

	if !s.policy.HasRole(principal, consts.RoleAdmin) {
		return s.fail(span, ErrForbidden)
	}
	if _, err := s.lookup(ctx, title); err != nil {
		return s.fail(span, err)
	}
	if err := s.store.DeleteByTitle(ctx, title); err != nil {
		return s.fail(span, fmt.Errorf("delete book: %w", err))
	}
	return nil
}

// ListPaged returns one page of the books matching q.Filter. The filter is a
// disjunction: a book matches on title or on author.
func (s *Service) ListPaged(ctx context.Context, q models.PageQuery) ([]models.Book, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.ListPaged", trace.WithAttributes(
		attribute.Int("page.number", q.Page),
		attribute.Int("page.size", q.Size),
		attribute.String("page.sort", q.Sort.Field+","+q.Sort.Dir.String()),
	))
	defer span.End()

	books, total, err := s.store.FindFiltered(ctx, q)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("list page: %w", err))
	}
	span.SetAttributes(attribute.Int("page.total", total))
	return books, nil
}

func (s *Service) lookup(ctx context.Context, title string) (models.Book, error) {
	book, err := s.store.FindByTitle(ctx, title)
	if err != nil {
		if errors.Is(err, storerrors.ErrBookNoExist) {
			return models.Book{}, ErrNotFound
		}
		return models.Book{}, fmt.Errorf("find book: %w", err)
	}
	return book, nil
}

func translate(err error, op string) error {
	switch {
	case errors.Is(err, storerrors.ErrTitleExists):
		return ErrDuplicateTitle
	case errors.Is(err, storerrors.ErrBookNoExist):
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *Service) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
