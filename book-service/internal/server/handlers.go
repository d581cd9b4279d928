package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/azaliaz/bookcatalog/book-service/internal/auth"
	"github.com/azaliaz/bookcatalog/book-service/internal/catalog"
	"github.com/azaliaz/bookcatalog/book-service/internal/domain/consts"
	"github.com/azaliaz/bookcatalog/book-service/internal/domain/models"
	"github.com/azaliaz/bookcatalog/book-service/internal/logger"
	storerrors "github.com/azaliaz/bookcatalog/book-service/internal/storage/errors"
	"github.com/azaliaz/bookcatalog/book-service/internal/validation"
)

var sortFields = map[string]bool{"id": true, "title": true, "author": true, "details": true}

// paramError reports a malformed query parameter or request body.
type paramError struct {
	msg string
}

func (e *paramError) Error() string {
	return e.msg
}

func (s *Server) AllBooks(ctx *gin.Context) {
	books, err := s.Catalog.ListAll(ctx.Request.Context())
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, nonNil(books))
}

func (s *Server) BookDetails(ctx *gin.Context) {
	details, err := s.Catalog.GetDetails(ctx.Request.Context(), ctx.Param("title"))
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	ctx.String(http.StatusOK, details)
}

func (s *Server) AddBook(ctx *gin.Context) {
	var in models.BookInput
	if err := ctx.ShouldBindJSON(&in); err != nil {
		s.writeError(ctx, &paramError{msg: consts.MsgMalformedBody})
		return
	}
	if err := validation.Book(in); err != nil {
		s.writeError(ctx, err)
		return
	}

	if _, err := s.Catalog.Create(ctx.Request.Context(), in.Book()); err != nil {
		s.writeError(ctx, err)
		return
	}
	ctx.Status(http.StatusCreated)
	ctx.Writer.WriteHeaderNow()
}

func (s *Server) UpdateBook(ctx *gin.Context) {
	var in models.PatchInput
	if err := ctx.ShouldBindJSON(&in); err != nil {
		s.writeError(ctx, &paramError{msg: consts.MsgMalformedBody})
		return
	}
	if err := validation.Patch(in); err != nil {
		s.writeError(ctx, err)
		return
	}

	book, err := s.Catalog.Update(ctx.Request.Context(), ctx.Param("title"), in.Patch())
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, book)
}

func (s *Server) BooksPage(ctx *gin.Context) {
	q, err := parsePageQuery(ctx)
	if err != nil {
		s.writeError(ctx, err)
		return
	}

	books, err := s.Catalog.ListPaged(ctx.Request.Context(), q)
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, nonNil(books))
}

func (s *Server) RemoveBook(ctx *gin.Context) {
	err := s.Catalog.Delete(ctx.Request.Context(), ctx.Param("title"), auth.PrincipalFrom(ctx))
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	ctx.Status(http.StatusOK)
	ctx.Writer.WriteHeaderNow()
}

// IssueToken exchanges Basic credentials, already checked by the auth
// middleware, for a bearer token.
func (s *Server) IssueToken(ctx *gin.Context) {
	if _, _, ok := ctx.Request.BasicAuth(); !ok {
		auth.Unauthorized(ctx, "Basic credentials are required")
		return
	}

	token, expiresAt, err := s.Issuer.Issue(auth.PrincipalFrom(ctx))
	if err != nil {
		s.writeError(ctx, err)
		return
	}
	if s.Metrics != nil {
		s.Metrics.TokensIssued.Inc()
	}
	ctx.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": expiresAt.UTC().Format(time.RFC3339),
	})
}

func (s *Server) Healthz(ctx *gin.Context) {
	ctx.String(http.StatusOK, "ok")
}

func (s *Server) Readyz(ctx *gin.Context) {
	pingCtx, cancel := context.WithTimeout(ctx.Request.Context(), consts.DBCtxTimeout)
	defer cancel()
	if err := s.Store.Ping(pingCtx); err != nil {
		logger.Get().Warn().Err(err).Msg("readiness check failed")
		ctx.String(http.StatusServiceUnavailable, "not ready")
		return
	}
	ctx.String(http.StatusOK, "ready")
}

// parsePageQuery reads page, size, sort and the title/author filter. Missing
// values fall back to page 0, size 3, sort by id ascending.
func parsePageQuery(ctx *gin.Context) (models.PageQuery, error) {
	q := models.PageQuery{
		Filter: models.Filter{
			Title:  ctx.Query("title"),
			Author: ctx.Query("author"),
		},
		Page: consts.DefaultPage,
		Size: consts.DefaultPageSize,
		Sort: models.Sort{Field: consts.DefaultSort, Dir: models.Asc},
	}

	if v := ctx.Query("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 0 {
			return q, &paramError{msg: "page must be a non-negative integer"}
		}
		q.Page = page
	}
	if v := ctx.Query("size"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil || size <= 0 {
			return q, &paramError{msg: "size must be a positive integer"}
		}
		q.Size = min(size, consts.MaxPageSize)
	}
	if v := ctx.Query("sort"); v != "" {
		field, dir, _ := strings.Cut(v, ",")
		field = strings.TrimSpace(field)
		if !sortFields[field] {
			return q, &paramError{msg: "unknown sort field " + strconv.Quote(field)}
		}
		d, ok := models.ParseSortDir(dir)
		if !ok {
			return q, &paramError{msg: "sort direction must be asc or desc"}
		}
		q.Sort = models.Sort{Field: field, Dir: d}
	}
	return q, nil
}

// writeError maps an error to its status code and category and aborts the
// request with the error body.
func (s *Server) writeError(ctx *gin.Context, err error) {
	var (
		verr     *validation.Error
		perr     *paramError
		status   int
		category string
		message  string
	)
	switch {
	case errors.As(err, &verr):
		status, category, message = http.StatusBadRequest, consts.CategoryValidation, verr.Message
	case errors.As(err, &perr):
		status, category, message = http.StatusBadRequest, consts.CategoryBadRequest, perr.msg
	case errors.Is(err, catalog.ErrDuplicateTitle):
		status, category, message = http.StatusBadRequest, consts.CategoryTitleExists, consts.MsgTitleExists
	case errors.Is(err, catalog.ErrNotFound):
		status, category, message = http.StatusBadRequest, consts.CategoryNoResults, consts.MsgNoResults
	case errors.Is(err, catalog.ErrForbidden):
		status, category, message = http.StatusForbidden, consts.CategoryForbidden, consts.MsgAccessDenied
	case errors.Is(err, storerrors.ErrInvalidSortField):
		status, category, message = http.StatusBadRequest, consts.CategoryBadRequest, err.Error()
	default:
		logger.Get().Error().Err(err).Str("path", ctx.FullPath()).Msg("request failed")
		status, category, message = http.StatusInternalServerError, consts.CategoryInternal, consts.MsgInternal
	}

	if s.Metrics != nil {
		s.Metrics.CatalogError(category)
	}
	ctx.AbortWithStatusJSON(status, gin.H{"error": category, "message": message})
}

func nonNil(books []models.Book) []models.Book {
	if books == nil {
		return []models.Book{}
	}
	return books
}
