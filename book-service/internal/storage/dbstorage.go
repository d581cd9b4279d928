package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/azaliaz/bookcatalog/book-service/internal/domain/consts"
	"github.com/azaliaz/bookcatalog/book-service/internal/domain/models"
	"github.com/azaliaz/bookcatalog/book-service/internal/logger"
	storerrors "github.com/azaliaz/bookcatalog/book-service/internal/storage/errors"
)

const bookColumns = `id, title, author, details`

var sortColumns = map[string]string{
	"":        "id",
	"id":      "id",
	"title":   "title",
	"author":  "author",
	"details": "details",
}

type DBStorage struct {
	pool *pgxpool.Pool
}

func NewDB(ctx context.Context, addr string) (*DBStorage, error) {
	config, err := pgxpool.ParseConfig(addr)
	if err != nil {
		return nil, err
	}
	config.MaxConns = 20
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	dbs := &DBStorage{pool: pool}
	if err := dbs.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return dbs, nil
}

func (dbs *DBStorage) Close() {
	dbs.pool.Close()
}

func (dbs *DBStorage) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()
	return dbs.pool.Ping(ctx)
}

func (dbs *DBStorage) ListAll(ctx context.Context) ([]models.Book, error) {
	log := logger.Get()
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()

	rows, err := dbs.pool.Query(ctx, `SELECT `+bookColumns+` FROM books ORDER BY id`)
	if err != nil {
		log.Error().Err(err).Msg("failed get all books from db")
		return nil, err
	}
	return scanBooks(rows)
}

func (dbs *DBStorage) FindByTitle(ctx context.Context, title string) (models.Book, error) {
	log := logger.Get()
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()

	var book models.Book
	err := dbs.pool.QueryRow(ctx, `SELECT `+bookColumns+` FROM books WHERE title = $1`, title).
		Scan(&book.ID, &book.Title, &book.Author, &book.Details)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Book{}, storerrors.ErrBookNoExist
		}
		log.Error().Err(err).Str("title", title).Msg("failed to scan data from db")
		return models.Book{}, err
	}
	return book, nil
}

// Save relies on the unique index over books.title, so a concurrent writer
// holding the same title makes the statement fail instead of duplicating it.
func (dbs *DBStorage) Save(ctx context.Context, book models.Book) (models.Book, error) {
	log := logger.Get()
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()

	if book.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return models.Book{}, err
		}
		book.ID = id.String()
		_, err = dbs.pool.Exec(ctx,
			`INSERT INTO books (id, title, author, details) VALUES ($1, $2, $3, $4)`,
			book.ID, book.Title, book.Author, book.Details)
		if err != nil {
			if isUniqueViolation(err) {
				log.Debug().Str("title", book.Title).Msg("title already taken")
				return models.Book{}, storerrors.ErrTitleExists
			}
			log.Error().Err(err).Msg("save book failed")
			return models.Book{}, err
		}
		return book, nil
	}

	res, err := dbs.pool.Exec(ctx,
		`UPDATE books SET title = $2, author = $3, details = $4 WHERE id = $1`,
		book.ID, book.Title, book.Author, book.Details)
	if err != nil {
		if isUniqueViolation(err) {
			log.Debug().Str("title", book.Title).Msg("title already taken")
			return models.Book{}, storerrors.ErrTitleExists
		}
		log.Error().Err(err).Msg("update book failed")
		return models.Book{}, err
	}
	if res.RowsAffected() == 0 {
		log.Warn().Str("id", book.ID).Msg("book not found")
		return models.Book{}, storerrors.ErrBookNoExist
	}
	return book, nil
}

func (dbs *DBStorage) DeleteByTitle(ctx context.Context, title string) error {
	log := logger.Get()
	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()

	res, err := dbs.pool.Exec(ctx, `DELETE FROM books WHERE title = $1`, title)
	if err != nil {
		log.Error().Err(err).Msg("failed to delete book")
		return err
	}
	if res.RowsAffected() > 0 {
		log.Info().Str("title", title).Msg("book deleted successfully")
	}
	return nil
}

func (dbs *DBStorage) FindFiltered(ctx context.Context, q models.PageQuery) ([]models.Book, int, error) {
	log := logger.Get()

	column, ok := sortColumns[q.Sort.Field]
	if !ok {
		return nil, 0, storerrors.ErrInvalidSortField
	}
	orderDirection := "ASC"
	if q.Sort.Dir == models.Desc {
		orderDirection = "DESC"
	}

	var conditions []string
	var args []any
	argPos := 1

	if q.Filter.Title != "" {
		conditions = append(conditions, fmt.Sprintf("title = $%d", argPos))
		args = append(args, q.Filter.Title)
		argPos++
	}
	if q.Filter.Author != "" {
		conditions = append(conditions, fmt.Sprintf("author = $%d", argPos))
		args = append(args, q.Filter.Author)
		argPos++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " OR ")
	}

	ctx, cancel := context.WithTimeout(ctx, consts.DBCtxTimeout)
	defer cancel()

	var total int
	if err := dbs.pool.QueryRow(ctx, `SELECT COUNT(*) FROM books`+whereClause, args...).Scan(&total); err != nil {
		log.Error().Err(err).Msg("failed to count books")
		return nil, 0, err
	}

	sortQuery := fmt.Sprintf(" ORDER BY %s %s", column, orderDirection)
	if column != "id" {
		sortQuery += ", id ASC"
	}
	pageQuery := fmt.Sprintf(" LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, q.Size, q.Offset())

	rows, err := dbs.pool.Query(ctx, `SELECT `+bookColumns+` FROM books`+whereClause+sortQuery+pageQuery, args...)
	if err != nil {
		log.Error().Err(err).Msg("failed to get books from db")
		return nil, 0, err
	}
	books, err := scanBooks(rows)
	if err != nil {
		return nil, 0, err
	}
	return books, total, nil
}

func scanBooks(rows pgx.Rows) ([]models.Book, error) {
	defer rows.Close()

	books := []models.Book{}
	for rows.Next() {
		var book models.Book
		if err := rows.Scan(&book.ID, &book.Title, &book.Author, &book.Details); err != nil {
			logger.Get().Error().Err(err).Msg("failed to scan data from db")
			return nil, err
		}
		books = append(books, book)
	}
	return books, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func Migrations(dbDsn string, migrationsPath string) error {
	log := logger.Get()
	migratePath := fmt.Sprintf("file://%s", migrationsPath)
	m, err := migrate.New(migratePath, dbDsn)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info().Msg("no migrations apply")
			return nil
		}
		return err
	}
	log.Info().Msg("all migrations apply")
	return nil
}
