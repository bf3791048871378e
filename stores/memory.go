// Package stores provides in-process implementations of the bookmarket
// store interfaces. They back tests and the single-node dev mode; a
// store constructed with a snapshot path reloads its state across
// restarts.
package stores

import (
	"encoding/json"
	"math"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	bm "github.com/vallury/bookmarket"
)

// =============================================================================
// MemUserStore
// =============================================================================

// userRecord is the snapshot form of a user. The domain type hides its
// secret fields from JSON, the snapshot must keep them.
type userRecord struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Email             string     `json:"email"`
	PasswordHash      *string    `json:"password_hash,omitempty"`
	GoogleID          *string    `json:"google_id,omitempty"`
	OTP               *string    `json:"otp,omitempty"`
	OTPExpiry         *time.Time `json:"otp_expiry,omitempty"`
	ResetToken        *string    `json:"reset_token,omitempty"`
	ResetTokenExpiry  *time.Time `json:"reset_token_expiry,omitempty"`
	ProfilePictureURL *string    `json:"profile_picture_url,omitempty"`
	Role              string     `json:"role"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func (r *userRecord) toUser() *bm.User {
	return &bm.User{
		ID:                r.ID,
		Name:              r.Name,
		Email:             r.Email,
		PasswordHash:      r.PasswordHash,
		GoogleID:          r.GoogleID,
		OTP:               r.OTP,
		OTPExpiry:         r.OTPExpiry,
		ResetToken:        r.ResetToken,
		ResetTokenExpiry:  r.ResetTokenExpiry,
		ProfilePictureURL: r.ProfilePictureURL,
		Role:              bm.Role(r.Role),
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

func userToRecord(u *bm.User) *userRecord {
	return &userRecord{
		ID:                u.ID,
		Name:              u.Name,
		Email:             u.Email,
		PasswordHash:      u.PasswordHash,
		GoogleID:          u.GoogleID,
		OTP:               u.OTP,
		OTPExpiry:         u.OTPExpiry,
		ResetToken:        u.ResetToken,
		ResetTokenExpiry:  u.ResetTokenExpiry,
		ProfilePictureURL: u.ProfilePictureURL,
		Role:              string(u.Role),
		CreatedAt:         u.CreatedAt,
		UpdatedAt:         u.UpdatedAt,
	}
}

// MemUserStore keeps users in memory, optionally snapshotting them to a
// JSON file after every mutation.
type MemUserStore struct {
	mu    sync.RWMutex
	users map[string]*userRecord
	path  string
}

func NewMemUserStore() *MemUserStore {
	return &MemUserStore{users: make(map[string]*userRecord)}
}

// NewSnapshotUserStore loads any existing snapshot at path and persists
// every mutation back to it.
func NewSnapshotUserStore(path string) (*MemUserStore, error) {
	s := &MemUserStore{users: make(map[string]*userRecord), path: path}
	if err := loadSnapshot(path, &s.users); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MemUserStore) snapshot() error {
	if s.path == "" {
		return nil
	}
	return saveSnapshot(s.path, s.users)
}

func (s *MemUserStore) CreateUser(user *bm.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Email == user.Email {
			return bm.ErrEmailExists
		}
	}

	record := userToRecord(user)
	now := time.Now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	s.users[record.ID] = record
	return s.snapshot()
}

func (s *MemUserStore) GetUserByID(id string) (*bm.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.users[id]
	if !ok {
		return nil, bm.ErrUserNotFound
	}
	return record.toUser(), nil
}

func (s *MemUserStore) GetUserByEmail(email string) (*bm.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, record := range s.users {
		if record.Email == email {
			return record.toUser(), nil
		}
	}
	return nil, bm.ErrUserNotFound
}

func (s *MemUserStore) GetUserByGoogleID(googleID string) (*bm.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, record := range s.users {
		if record.GoogleID != nil && *record.GoogleID == googleID {
			return record.toUser(), nil
		}
	}
	return nil, bm.ErrUserNotFound
}

func (s *MemUserStore) UpdateUser(id string, upd bm.UserUpdate) (*bm.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.users[id]
	if !ok {
		return nil, bm.ErrUserNotFound
	}

	if upd.Email != nil && *upd.Email != record.Email {
		for _, existing := range s.users {
			if existing.ID != id && existing.Email == *upd.Email {
				return nil, bm.ErrEmailExists
			}
		}
	}

	if upd.Name != nil {
		record.Name = *upd.Name
	}
	if upd.Email != nil {
		record.Email = *upd.Email
	}
	if upd.PasswordHash != nil {
		hash := *upd.PasswordHash
		record.PasswordHash = &hash
	}
	if upd.GoogleID != nil {
		gid := *upd.GoogleID
		record.GoogleID = &gid
	}
	if upd.ProfilePictureURL != nil {
		url := *upd.ProfilePictureURL
		record.ProfilePictureURL = &url
	}
	if upd.Role != nil {
		record.Role = string(*upd.Role)
	}
	record.UpdatedAt = time.Now()

	if err := s.snapshot(); err != nil {
		return nil, err
	}
	return record.toUser(), nil
}

func (s *MemUserStore) SetOTP(email, otp string, expiry time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range s.users {
		if record.Email == email {
			code := otp
			exp := expiry
			record.OTP = &code
			record.OTPExpiry = &exp
			record.UpdatedAt = time.Now()
			return s.snapshot()
		}
	}
	return bm.ErrUserNotFound
}

func (s *MemUserStore) ClearOTP(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.users[id]
	if !ok {
		return bm.ErrUserNotFound
	}
	record.OTP = nil
	record.OTPExpiry = nil
	record.UpdatedAt = time.Now()
	return s.snapshot()
}

// =============================================================================
// MemBookStore
// =============================================================================

// MemBookStore keeps listings in memory. Users, when set, resolves the
// seller projection on reads the way the SQL store's join does.
type MemBookStore struct {
	mu    sync.RWMutex
	books map[string]*bm.Book
	path  string

	Users *MemUserStore
}

func NewMemBookStore() *MemBookStore {
	return &MemBookStore{books: make(map[string]*bm.Book)}
}

func NewSnapshotBookStore(path string) (*MemBookStore, error) {
	s := &MemBookStore{books: make(map[string]*bm.Book), path: path}
	if err := loadSnapshot(path, &s.books); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MemBookStore) snapshot() error {
	if s.path == "" {
		return nil
	}
	return saveSnapshot(s.path, s.books)
}

func (s *MemBookStore) withSeller(book *bm.Book) *bm.Book {
	clone := *book
	s.attachSeller(&clone)
	return &clone
}

// attachSeller fills the public seller projection on a private copy.
func (s *MemBookStore) attachSeller(book *bm.Book) {
	if s.Users == nil {
		return
	}
	if seller, err := s.Users.GetUserByID(book.SellerID); err == nil {
		public := seller.Public()
		book.Seller = &public
	}
}

func (s *MemBookStore) CreateBook(book *bm.Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *book
	now := time.Now()
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = now
	}
	clone.UpdatedAt = now
	s.books[clone.ID] = &clone
	return s.snapshot()
}

func (s *MemBookStore) GetBookByID(id string) (*bm.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	book, ok := s.books[id]
	if !ok {
		return nil, bm.ErrBookNotFound
	}
	return s.withSeller(book), nil
}

func (s *MemBookStore) ListBooks(filters bm.BookFilters) (*bm.BookList, error) {
	return s.list(filters, "")
}

func (s *MemBookStore) ListSellerBooks(sellerID string, filters bm.BookFilters) (*bm.BookList, error) {
	return s.list(filters, sellerID)
}

func (s *MemBookStore) list(filters bm.BookFilters, sellerID string) (*bm.BookList, error) {
	s.mu.RLock()
	var matched []*bm.Book
	for _, book := range s.books {
		if sellerID != "" && book.SellerID != sellerID {
			continue
		}
		if matchesFilters(book, filters) {
			// Private copy; UpdateBook rewrites records in place.
			clone := *book
			matched = append(matched, &clone)
		}
	}
	s.mu.RUnlock()

	sortBooks(matched, filters)

	total := int64(len(matched))
	page := filters.Page
	if page < 1 {
		page = 1
	}
	limit := filters.Limit
	if limit < 1 {
		limit = 20
	}

	start := (page - 1) * limit
	if start > len(matched) {
		start = len(matched)
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}

	books := make([]*bm.Book, 0, end-start)
	for _, book := range matched[start:end] {
		s.attachSeller(book)
		books = append(books, book)
	}

	return &bm.BookList{
		Books:      books,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: int(math.Ceil(float64(total) / float64(limit))),
	}, nil
}

func matchesFilters(book *bm.Book, filters bm.BookFilters) bool {
	if filters.Type != "" && filters.Type != "all" && book.Type != filters.Type {
		return false
	}
	if filters.Condition != "" && filters.Condition != "all" && book.Condition != filters.Condition {
		return false
	}
	if filters.MinPrice != nil && book.Price < *filters.MinPrice {
		return false
	}
	if filters.MaxPrice != nil && book.Price > *filters.MaxPrice {
		return false
	}
	if filters.Search != "" {
		needle := strings.ToLower(filters.Search)
		isbn := ""
		if book.ISBN != nil {
			isbn = *book.ISBN
		}
		desc := ""
		if book.Description != nil {
			desc = *book.Description
		}
		if !strings.Contains(strings.ToLower(book.Title), needle) &&
			!strings.Contains(strings.ToLower(book.Author), needle) &&
			!strings.Contains(strings.ToLower(isbn), needle) &&
			!strings.Contains(strings.ToLower(desc), needle) {
			return false
		}
	}
	return true
}

func sortBooks(books []*bm.Book, filters bm.BookFilters) {
	asc := filters.SortOrder == "asc"
	less := func(a, b *bm.Book) bool { return a.CreatedAt.Before(b.CreatedAt) }
	switch filters.SortBy {
	case "price":
		less = func(a, b *bm.Book) bool { return a.Price < b.Price }
	case "title":
		less = func(a, b *bm.Book) bool { return a.Title < b.Title }
	case "author":
		less = func(a, b *bm.Book) bool { return a.Author < b.Author }
	}
	sort.SliceStable(books, func(i, j int) bool {
		if asc {
			return less(books[i], books[j])
		}
		return less(books[j], books[i])
	})
}

func (s *MemBookStore) UpdateBook(id, sellerID string, upd bm.BookUpdate) (*bm.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	book, ok := s.books[id]
	if !ok || book.SellerID != sellerID {
		return nil, bm.ErrBookNotFound
	}

	if upd.Title != nil {
		book.Title = *upd.Title
	}
	if upd.Author != nil {
		book.Author = *upd.Author
	}
	if upd.ISBN != nil {
		isbn := *upd.ISBN
		book.ISBN = &isbn
	}
	if upd.Type != nil {
		book.Type = *upd.Type
	}
	if upd.Price != nil {
		book.Price = *upd.Price
	}
	if upd.Description != nil {
		desc := *upd.Description
		book.Description = &desc
	}
	if upd.Condition != nil {
		book.Condition = *upd.Condition
	}
	if upd.ImageURL != nil {
		url := *upd.ImageURL
		book.ImageURL = &url
	}
	book.UpdatedAt = time.Now()

	if err := s.snapshot(); err != nil {
		return nil, err
	}
	return s.withSeller(book), nil
}

func (s *MemBookStore) DeleteBook(id, sellerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	book, ok := s.books[id]
	if !ok || book.SellerID != sellerID {
		return bm.ErrBookNotFound
	}
	delete(s.books, id)
	return s.snapshot()
}

// =============================================================================
// MemFileStore
// =============================================================================

// MemFileStore keeps upload records in memory.
type MemFileStore struct {
	mu    sync.RWMutex
	files map[string]*bm.File
	path  string
}

func NewMemFileStore() *MemFileStore {
	return &MemFileStore{files: make(map[string]*bm.File)}
}

func NewSnapshotFileStore(path string) (*MemFileStore, error) {
	s := &MemFileStore{files: make(map[string]*bm.File), path: path}
	if err := loadSnapshot(path, &s.files); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MemFileStore) snapshot() error {
	if s.path == "" {
		return nil
	}
	return saveSnapshot(s.path, s.files)
}

func (s *MemFileStore) CreateFile(file *bm.File) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *file
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = time.Now()
	}
	s.files[clone.ID] = &clone
	return s.snapshot()
}

func (s *MemFileStore) ListUserFiles(userID string) ([]*bm.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var files []*bm.File
	for _, file := range s.files {
		if file.UserID == userID {
			clone := *file
			files = append(files, &clone)
		}
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].CreatedAt.After(files[j].CreatedAt)
	})
	return files, nil
}

// =============================================================================
// snapshots
// =============================================================================

func loadSnapshot[T any](path string, dest *map[string]T) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, dest)
}

func saveSnapshot[T any](path string, src map[string]T) error {
	data, err := json.MarshalIndent(src, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomicFile(path, data)
}
