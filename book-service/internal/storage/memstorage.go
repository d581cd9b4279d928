package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/azaliaz/bookcatalog/book-service/internal/domain/models"
	"github.com/azaliaz/bookcatalog/book-service/internal/logger"
	storerrors "github.com/azaliaz/bookcatalog/book-service/internal/storage/errors"
)

type MemStorage struct {
	mu       sync.RWMutex
	bookStor map[string]models.Book
}

func New() *MemStorage {
	return &MemStorage{
		bookStor: make(map[string]models.Book),
	}
}

func (ms *MemStorage) Ping(_ context.Context) error {
	return nil
}

func (ms *MemStorage) ListAll(_ context.Context) ([]models.Book, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	books := make([]models.Book, 0, len(ms.bookStor))
	for _, book := range ms.bookStor {
		books = append(books, book)
	}
	sort.Slice(books, func(i, j int) bool { return books[i].ID < books[j].ID })
	return books, nil
}

func (ms *MemStorage) FindByTitle(_ context.Context, title string) (models.Book, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	book, ok := ms.findBook(title)
	if !ok {
		return models.Book{}, storerrors.ErrBookNoExist
	}
	return book, nil
}

// Save inserts a transient book or overwrites a persisted one. The title check
// and the write happen under the same lock.
func (ms *MemStorage) Save(_ context.Context, book models.Book) (models.Book, error) {
	log := logger.Get()
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if holder, ok := ms.findBook(book.Title); ok && holder.ID != book.ID {
		log.Debug().Str("title", book.Title).Str("holder", holder.ID).Msg("title already taken")
		return models.Book{}, storerrors.ErrTitleExists
	}

	if book.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return models.Book{}, err
		}
		book.ID = id.String()
		ms.bookStor[book.ID] = book
		log.Debug().Str("id", book.ID).Str("title", book.Title).Msg("book inserted")
		return book, nil
	}

	if _, exists := ms.bookStor[book.ID]; !exists {
		log.Warn().Str("id", book.ID).Msg("book not found")
		return models.Book{}, storerrors.ErrBookNoExist
	}
	ms.bookStor[book.ID] = book
	log.Debug().Str("id", book.ID).Str("title", book.Title).Msg("book updated")
	return book, nil
}

func (ms *MemStorage) DeleteByTitle(_ context.Context, title string) error {
	log := logger.Get()
	ms.mu.Lock()
	defer ms.mu.Unlock()

	book, ok := ms.findBook(title)
	if !ok {
		return nil
	}
	delete(ms.bookStor, book.ID)
	log.Info().Str("id", book.ID).Str("title", title).Msg("book deleted successfully")
	return nil
}

func (ms *MemStorage) FindFiltered(_ context.Context, q models.PageQuery) ([]models.Book, int, error) {
	less, err := lessFunc(q.Sort)
	if err != nil {
		return nil, 0, err
	}

	ms.mu.RLock()
	var result []models.Book
	for _, book := range ms.bookStor {
		if q.Filter.Match(book) {
			result = append(result, book)
		}
	}
	ms.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return less(result[i], result[j]) })

	total := len(result)
	start := min(q.Offset(), total)
	end := start + min(max(q.Size, 0), total-start)
	return append([]models.Book{}, result[start:end]...), total, nil
}

// findBook must be called with ms.mu held.
func (ms *MemStorage) findBook(title string) (models.Book, bool) {
	for _, book := range ms.bookStor {
		if book.Title == title {
			return book, true
		}
	}
	return models.Book{}, false
}

func lessFunc(s models.Sort) (func(a, b models.Book) bool, error) {
	var key func(models.Book) string
	switch s.Field {
	case "", "id":
		key = func(b models.Book) string { return b.ID }
	case "title":
		key = func(b models.Book) string { return b.Title }
	case "author":
		key = func(b models.Book) string { return b.Author }
	case "details":
		key = func(b models.Book) string { return b.Details }
	default:
		return nil, storerrors.ErrInvalidSortField
	}

	return func(a, b models.Book) bool {
		ka, kb := key(a), key(b)
		if ka == kb {
			return a.ID < b.ID
		}
		if s.Dir == models.Desc {
			return ka > kb
		}
		return ka < kb
	}, nil
}
