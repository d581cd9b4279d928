package catalog_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azaliaz/bookcatalog/book-service/internal/access"
	"github.com/azaliaz/bookcatalog/book-service/internal/catalog"
	"github.com/azaliaz/bookcatalog/book-service/internal/catalog/mocks"
	"github.com/azaliaz/bookcatalog/book-service/internal/domain/consts"
	"github.com/azaliaz/bookcatalog/book-service/internal/domain/models"
	"github.com/azaliaz/bookcatalog/book-service/internal/storage"
	storerrors "github.com/azaliaz/bookcatalog/book-service/internal/storage/errors"
)

var (
	admin = models.Principal{Username: "admin", Roles: []string{consts.RoleUser, consts.RoleAdmin}}
	user  = models.Principal{Username: "user", Roles: []string{consts.RoleUser}}
)

func newService() (*catalog.Service, *storage.MemStorage) {
	store := storage.New()
	return catalog.New(store, access.New()), store
}

func defaultPage(f models.Filter) models.PageQuery {
	return models.PageQuery{
		Filter: f,
		Page:   consts.DefaultPage,
		Size:   consts.DefaultPageSize,
		Sort:   models.Sort{Field: consts.DefaultSort, Dir: models.Asc},
	}
}

func TestService_CreateDuplicateLeavesStoreUnchanged(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	a, err := svc.Create(ctx, models.Book{Title: "Quantum Physics", Author: "Eldar", Details: "horror"})
	require.NoError(t, err)
	b, err := svc.Create(ctx, models.Book{Title: "Digital Systems", Author: "Jane", Details: "easy"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, models.Book{Title: "Quantum Physics", Author: "Someone", Details: "other"})
	assert.ErrorIs(t, err, catalog.ErrDuplicateTitle)

	books, err := svc.ListAll(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []models.Book{a, b}, books)
}

func TestService_CreateScenario(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	created, err := svc.Create(ctx, models.Book{Title: "Digital Systems", Author: "Jane", Details: "easy"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Digital Systems", created.Title)

	_, err = svc.Create(ctx, models.Book{Title: "Digital Systems", Author: "John", Details: "hard"})
	assert.ErrorIs(t, err, catalog.ErrDuplicateTitle)

	books, err := svc.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, books, 1)
}

func TestService_CreateIgnoresCallerID(t *testing.T) {
	svc, _ := newService()

	created, err := svc.Create(context.Background(), models.Book{ID: "forged", Title: "C++ Programming", Author: "John"})
	require.NoError(t, err)
	assert.NotEqual(t, "forged", created.ID)
}

func TestService_ConcurrentCreateSameTitle(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	const workers = 32
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(ctx, models.Book{Title: "Race", Author: "Runner"})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, catalog.ErrDuplicateTitle)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	books, err := svc.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, books, 1)
}

func TestService_GetDetails(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	_, err := svc.GetDetails(ctx, "Java")
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	_, err = svc.Create(ctx, models.Book{Title: "Digital Systems", Author: "Jane", Details: "easy"})
	require.NoError(t, err)

	details, err := svc.GetDetails(ctx, "Digital Systems")
	require.NoError(t, err)
	assert.Equal(t, "easy", details)
}

func TestService_UpdateKeepsDetails(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	orig, err := svc.Create(ctx, models.Book{Title: "X", Author: "Eldar", Details: "kept"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, "X", models.BookPatch{Title: "Y", Author: "Zorro"})
	require.NoError(t, err)
	assert.Equal(t, orig.ID, updated.ID)
	assert.Equal(t, "Y", updated.Title)
	assert.Equal(t, "Zorro", updated.Author)
	assert.Equal(t, "kept", updated.Details)

	details, err := svc.GetDetails(ctx, "Y")
	require.NoError(t, err)
	assert.Equal(t, "kept", details)

	_, err = svc.GetDetails(ctx, "X")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestService_UpdateMissing(t *testing.T) {
	svc, _ := newService()

	_, err := svc.Update(context.Background(), "Gender Studies", models.BookPatch{Title: "ALPs management", Author: "Pavel"})
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestService_UpdateOntoTakenTitle(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	_, err := svc.Create(ctx, models.Book{Title: "First", Author: "Eldar"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, models.Book{Title: "Second", Author: "Jane"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, "Second", models.BookPatch{Title: "First", Author: "Jane"})
	assert.ErrorIs(t, err, catalog.ErrDuplicateTitle)

	details, err := svc.GetDetails(ctx, "Second")
	require.NoError(t, err)
	assert.Empty(t, details)
}

func TestService_UpdateSameTitle(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	_, err := svc.Create(ctx, models.Book{Title: "Same", Author: "Eldar"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, "Same", models.BookPatch{Title: "Same", Author: "Pavel"})
	require.NoError(t, err)
	assert.Equal(t, "Pavel", updated.Author)
}

func TestService_DeleteRequiresAdmin(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	_, err := svc.Create(ctx, models.Book{Title: "Quantum Physics", Author: "Eldar"})
	require.NoError(t, err)

	for _, title := range []string{"Quantum Physics", "Missing"} {
		assert.ErrorIs(t, svc.Delete(ctx, title, user), catalog.ErrForbidden)
		assert.ErrorIs(t, svc.Delete(ctx, title, models.Principal{}), catalog.ErrForbidden)
	}

	books, err := svc.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, books, 1)
}

func TestService_DeleteByAdmin(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	for _, b := range []models.Book{
		{Title: "Quantum Physics", Author: "Eldar", Details: "horror"},
		{Title: "Digital Systems", Author: "Jane", Details: "easy"},
	} {
		_, err := svc.Create(ctx, b)
		require.NoError(t, err)
	}

	assert.ErrorIs(t, svc.Delete(ctx, "C", admin), catalog.ErrNotFound)

	require.NoError(t, svc.Delete(ctx, "Quantum Physics", admin))
	books, err := svc.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, books, 1)

	_, err = svc.GetDetails(ctx, "Quantum Physics")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestService_ListPagedUsesOrFilter(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	for _, b := range []models.Book{
		{Title: "Quantum Physics", Author: "Someone"},
		{Title: "Other", Author: "Eldar"},
		{Title: "Unrelated", Author: "Nobody"},
	} {
		_, err := svc.Create(ctx, b)
		require.NoError(t, err)
	}

	books, err := svc.ListPaged(ctx, defaultPage(models.Filter{Title: "Quantum Physics", Author: "Eldar"}))
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "Quantum Physics", books[0].Title)
	assert.Equal(t, "Other", books[1].Title)
}

func TestService_ListPagedDefaultsToThreeByID(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	titles := []string{"A", "B", "C", "D", "E"}
	for _, title := range titles {
		_, err := svc.Create(ctx, models.Book{Title: title})
		require.NoError(t, err)
	}

	first, err := svc.ListPaged(ctx, defaultPage(models.Filter{}))
	require.NoError(t, err)
	require.Len(t, first, 3)
	assert.Equal(t, []string{"A", "B", "C"}, titlesOf(first))

	q := defaultPage(models.Filter{})
	q.Page = 1
	second, err := svc.ListPaged(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, []string{"D", "E"}, titlesOf(second))

	q.Page = 5
	empty, err := svc.ListPaged(ctx, q)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestService_ListPagedSortDesc(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	for _, title := range []string{"b", "c", "a"} {
		_, err := svc.Create(ctx, models.Book{Title: title})
		require.NoError(t, err)
	}

	books, err := svc.ListPaged(ctx, models.PageQuery{Size: 10, Sort: models.Sort{Field: "title", Dir: models.Desc}})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, titlesOf(books))
}

func TestService_DeleteChecksRoleBeforeLookup(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockStorage(ctrl)
	policy := mocks.NewMockPolicy(ctrl)
	svc := catalog.New(store, policy)

	policy.EXPECT().HasRole(user, consts.RoleAdmin).Return(false)

	err := svc.Delete(context.Background(), "Quantum Physics", user)
	assert.ErrorIs(t, err, catalog.ErrForbidden)
}

func TestService_CreateLosesRace(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockStorage(ctrl)
	svc := catalog.New(store, access.New())

	book := models.Book{Title: "Quantum Physics", Author: "Eldar"}
	gomock.InOrder(
		store.EXPECT().FindByTitle(gomock.Any(), book.Title).Return(models.Book{}, storerrors.ErrBookNoExist),
		store.EXPECT().Save(gomock.Any(), book).Return(models.Book{}, storerrors.ErrTitleExists),
	)

	_, err := svc.Create(context.Background(), book)
	assert.ErrorIs(t, err, catalog.ErrDuplicateTitle)
}

func TestService_StoreFailuresAreWrapped(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockStorage(ctrl)
	svc := catalog.New(store, access.New())
	dbErr := errors.New("db error")

	t.Run("list", func(t *testing.T) {
		store.EXPECT().ListAll(gomock.Any()).Return(nil, dbErr)
		_, err := svc.ListAll(context.Background())
		assert.ErrorIs(t, err, dbErr)
	})

	t.Run("lookup", func(t *testing.T) {
		store.EXPECT().FindByTitle(gomock.Any(), "X").Return(models.Book{}, dbErr)
		_, err := svc.GetDetails(context.Background(), "X")
		assert.ErrorIs(t, err, dbErr)
		assert.NotErrorIs(t, err, catalog.ErrNotFound)
	})

	t.Run("save", func(t *testing.T) {
		store.EXPECT().FindByTitle(gomock.Any(), "X").Return(models.Book{}, storerrors.ErrBookNoExist)
		store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(models.Book{}, dbErr)
		_, err := svc.Create(context.Background(), models.Book{Title: "X"})
		assert.ErrorIs(t, err, dbErr)
	})

	t.Run("update vanished record", func(t *testing.T) {
		store.EXPECT().FindByTitle(gomock.Any(), "X").Return(models.Book{ID: "1", Title: "X"}, nil)
		store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(models.Book{}, storerrors.ErrBookNoExist)
		_, err := svc.Update(context.Background(), "X", models.BookPatch{Title: "Y"})
		assert.ErrorIs(t, err, catalog.ErrNotFound)
	})

	t.Run("page", func(t *testing.T) {
		store.EXPECT().FindFiltered(gomock.Any(), gomock.Any()).Return(nil, 0, dbErr)
		_, err := svc.ListPaged(context.Background(), defaultPage(models.Filter{}))
		assert.ErrorIs(t, err, dbErr)
	})
}

func titlesOf(books []models.Book) []string {
	titles := make([]string, 0, len(books))
	for _, b := range books {
		titles = append(titles, b.Title)
	}
	return titles
}
