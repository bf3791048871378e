package stores_test

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bm "github.com/vallury/bookmarket"
	"github.com/vallury/bookmarket/stores"
)

func TestMemUserStoreCRUD(t *testing.T) {
	s := stores.NewMemUserStore()

	hash := "bcrypt-hash"
	require.NoError(t, s.CreateUser(&bm.User{
		ID: "u1", Name: "Ann", Email: "ann@example.com",
		PasswordHash: &hash, Role: bm.RoleBuyer,
	}))

	// unique email
	err := s.CreateUser(&bm.User{ID: "u2", Name: "Copy", Email: "ann@example.com"})
	assert.ErrorIs(t, err, bm.ErrEmailExists)

	byID, err := s.GetUserByID("u1")
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", byID.Email)
	require.NotNil(t, byID.PasswordHash)
	assert.Equal(t, hash, *byID.PasswordHash)

	byEmail, err := s.GetUserByEmail("ann@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", byEmail.ID)

	_, err = s.GetUserByID("missing")
	assert.ErrorIs(t, err, bm.ErrUserNotFound)
	_, err = s.GetUserByEmail("missing@example.com")
	assert.ErrorIs(t, err, bm.ErrUserNotFound)
	_, err = s.GetUserByGoogleID("missing")
	assert.ErrorIs(t, err, bm.ErrUserNotFound)

	gid := "google-1"
	role := bm.RoleSeller
	updated, err := s.UpdateUser("u1", bm.UserUpdate{GoogleID: &gid, Role: &role})
	require.NoError(t, err)
	assert.Equal(t, bm.RoleSeller, updated.Role)

	byGID, err := s.GetUserByGoogleID("google-1")
	require.NoError(t, err)
	assert.Equal(t, "u1", byGID.ID)

	// nil fields stay untouched
	name := "Ann Lee"
	updated, err = s.UpdateUser("u1", bm.UserUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Ann Lee", updated.Name)
	require.NotNil(t, updated.GoogleID)
	assert.Equal(t, "google-1", *updated.GoogleID)

	_, err = s.UpdateUser("missing", bm.UserUpdate{Name: &name})
	assert.ErrorIs(t, err, bm.ErrUserNotFound)
}

func TestMemUserStoreUpdateEmailConflict(t *testing.T) {
	s := stores.NewMemUserStore()
	require.NoError(t, s.CreateUser(&bm.User{ID: "u1", Name: "A", Email: "a@example.com"}))
	require.NoError(t, s.CreateUser(&bm.User{ID: "u2", Name: "B", Email: "b@example.com"}))

	taken := "b@example.com"
	_, err := s.UpdateUser("u1", bm.UserUpdate{Email: &taken})
	assert.ErrorIs(t, err, bm.ErrEmailExists)

	// updating to your own current email is fine
	same := "a@example.com"
	_, err = s.UpdateUser("u1", bm.UserUpdate{Email: &same})
	assert.NoError(t, err)
}

func TestMemUserStoreOTPLifecycle(t *testing.T) {
	s := stores.NewMemUserStore()
	require.NoError(t, s.CreateUser(&bm.User{ID: "u1", Name: "Ann", Email: "ann@example.com"}))

	expiry := time.Now().Add(10 * time.Minute)
	require.NoError(t, s.SetOTP("ann@example.com", "123456", expiry))
	assert.ErrorIs(t, s.SetOTP("missing@example.com", "123456", expiry), bm.ErrUserNotFound)

	user, err := s.GetUserByID("u1")
	require.NoError(t, err)
	require.NotNil(t, user.OTP)
	require.NotNil(t, user.OTPExpiry)
	assert.Equal(t, "123456", *user.OTP)

	require.NoError(t, s.ClearOTP("u1"))
	user, err = s.GetUserByID("u1")
	require.NoError(t, err)
	assert.Nil(t, user.OTP)
	assert.Nil(t, user.OTPExpiry)
}

func TestSnapshotUserStoreSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")

	s, err := stores.NewSnapshotUserStore(path)
	require.NoError(t, err)

	hash := "bcrypt-hash"
	gid := "google-1"
	require.NoError(t, s.CreateUser(&bm.User{
		ID: "u1", Name: "Ann", Email: "ann@example.com",
		PasswordHash: &hash, GoogleID: &gid, Role: bm.RoleSeller,
	}))
	require.NoError(t, s.SetOTP("ann@example.com", "123456", time.Now().Add(10*time.Minute)))

	reloaded, err := stores.NewSnapshotUserStore(path)
	require.NoError(t, err)

	user, err := reloaded.GetUserByEmail("ann@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, bm.RoleSeller, user.Role)
	require.NotNil(t, user.PasswordHash, "secrets must survive the snapshot")
	assert.Equal(t, hash, *user.PasswordHash)
	require.NotNil(t, user.OTP)
	assert.Equal(t, "123456", *user.OTP)

	_, err = reloaded.GetUserByGoogleID("google-1")
	assert.NoError(t, err)
}

func seedBooks(t *testing.T) *stores.MemBookStore {
	t.Helper()
	s := stores.NewMemBookStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	isbn := "9780441013593"
	for i, b := range []*bm.Book{
		{ID: "b1", Title: "Dune", Author: "Frank Herbert", ISBN: &isbn, Type: "fiction", Price: 9.5, SellerID: "s1", Condition: "good"},
		{ID: "b2", Title: "Go Programming", Author: "Alan Donovan", Type: "textbook", Price: 30, SellerID: "s1", Condition: "new"},
		{ID: "b3", Title: "Dune Messiah", Author: "Frank Herbert", Type: "fiction", Price: 12, SellerID: "s2", Condition: "fair"},
	} {
		b.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, s.CreateBook(b))
	}
	return s
}

func TestMemBookStoreFilters(t *testing.T) {
	s := seedBooks(t)

	titles := func(list *bm.BookList) []string {
		var out []string
		for _, b := range list.Books {
			out = append(out, b.Title)
		}
		return out
	}

	min := 10.0
	max := 40.0
	tests := []struct {
		name    string
		filters bm.BookFilters
		want    []string
	}{
		{
			name:    "type filter",
			filters: bm.BookFilters{Type: "textbook"},
			want:    []string{"Go Programming"},
		},
		{
			name:    "all means unfiltered, newest first by default",
			filters: bm.BookFilters{Type: "all", Condition: "all"},
			want:    []string{"Dune Messiah", "Go Programming", "Dune"},
		},
		{
			name:    "search is case insensitive across title author isbn",
			filters: bm.BookFilters{Search: "herbert"},
			want:    []string{"Dune Messiah", "Dune"},
		},
		{
			name:    "search matches isbn",
			filters: bm.BookFilters{Search: "9780441013593"},
			want:    []string{"Dune"},
		},
		{
			name:    "price range",
			filters: bm.BookFilters{MinPrice: &min, MaxPrice: &max},
			want:    []string{"Dune Messiah", "Go Programming"},
		},
		{
			name:    "sort by price ascending",
			filters: bm.BookFilters{SortBy: "price", SortOrder: "asc"},
			want:    []string{"Dune", "Dune Messiah", "Go Programming"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := s.ListBooks(tt.filters)
			require.NoError(t, err)
			assert.Equal(t, tt.want, titles(list))
		})
	}
}

func TestMemBookStorePagination(t *testing.T) {
	s := seedBooks(t)

	list, err := s.ListBooks(bm.BookFilters{Page: 2, Limit: 2, SortBy: "title", SortOrder: "asc"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), list.Total)
	assert.Equal(t, 2, list.TotalPages)
	require.Len(t, list.Books, 1)
	assert.Equal(t, "Go Programming", list.Books[0].Title)
}

func TestMemBookStoreSellerScoping(t *testing.T) {
	s := seedBooks(t)

	list, err := s.ListSellerBooks("s1", bm.BookFilters{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), list.Total)

	_, err = s.UpdateBook("b1", "s2", bm.BookUpdate{})
	assert.ErrorIs(t, err, bm.ErrBookNotFound)
	assert.ErrorIs(t, s.DeleteBook("b1", "s2"), bm.ErrBookNotFound)

	price := 20.0
	updated, err := s.UpdateBook("b1", "s1", bm.BookUpdate{Price: &price})
	require.NoError(t, err)
	assert.Equal(t, 20.0, updated.Price)

	require.NoError(t, s.DeleteBook("b1", "s1"))
	_, err = s.GetBookByID("b1")
	assert.ErrorIs(t, err, bm.ErrBookNotFound)
}

func TestMemBookStoreListDuringUpdate(t *testing.T) {
	s := seedBooks(t)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		prices := []float64{9.5, 11}
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			if _, err := s.UpdateBook("b1", "s1", bm.BookUpdate{Price: &prices[i%2]}); err != nil {
				t.Error(err)
				return
			}
		}
	}()

	for i := 0; i < 200; i++ {
		list, err := s.ListBooks(bm.BookFilters{SortBy: "price", SortOrder: "asc"})
		require.NoError(t, err)
		assert.Len(t, list.Books, 3)
	}

	close(stop)
	wg.Wait()
}

func TestMemBookStoreSellerProjection(t *testing.T) {
	users := stores.NewMemUserStore()
	require.NoError(t, users.CreateUser(&bm.User{ID: "s1", Name: "Seller", Email: "s@example.com", Role: bm.RoleSeller}))

	s := stores.NewMemBookStore()
	s.Users = users
	require.NoError(t, s.CreateBook(&bm.Book{ID: "b1", Title: "Dune", Author: "A", Type: "fiction", SellerID: "s1", Condition: "good"}))

	book, err := s.GetBookByID("b1")
	require.NoError(t, err)
	require.NotNil(t, book.Seller)
	assert.Equal(t, "s@example.com", book.Seller.Email)
}

func TestMemFileStoreNewestFirst(t *testing.T) {
	s := stores.NewMemFileStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"f1", "f2", "f3"} {
		require.NoError(t, s.CreateFile(&bm.File{
			ID: id, UserID: "u1", Filename: id + ".pdf",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, s.CreateFile(&bm.File{ID: "other", UserID: "u2", Filename: "other.pdf"}))

	files, err := s.ListUserFiles("u1")
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "f3", files[0].ID)
	assert.Equal(t, "f1", files[2].ID)
}
