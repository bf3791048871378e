package gorm

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"

	bm "github.com/vallury/bookmarket"
)

// AutoMigrate runs database migrations for all bookmarket tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&UserModel{},
		&BookModel{},
		&FileModel{},
	)
}

// =============================================================================
// UserStore
// =============================================================================

// UserStore implements bm.UserStore using GORM
type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) CreateUser(user *bm.User) error {
	if err := s.db.Create(UserToModel(user)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return bm.ErrEmailExists
		}
		return err
	}
	return nil
}

func (s *UserStore) GetUserByID(id string) (*bm.User, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, bm.ErrUserNotFound
		}
		return nil, err
	}
	return model.ToUser(), nil
}

func (s *UserStore) GetUserByEmail(email string) (*bm.User, error) {
	var model UserModel
	if err := s.db.First(&model, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, bm.ErrUserNotFound
		}
		return nil, err
	}
	return model.ToUser(), nil
}

func (s *UserStore) GetUserByGoogleID(googleID string) (*bm.User, error) {
	var model UserModel
	if err := s.db.First(&model, "google_id = ?", googleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, bm.ErrUserNotFound
		}
		return nil, err
	}
	return model.ToUser(), nil
}

func (s *UserStore) UpdateUser(id string, upd bm.UserUpdate) (*bm.User, error) {
	updates := map[string]any{}
	if upd.Name != nil {
		updates["name"] = *upd.Name
	}
	if upd.Email != nil {
		updates["email"] = *upd.Email
	}
	if upd.PasswordHash != nil {
		updates["password_hash"] = *upd.PasswordHash
	}
	if upd.GoogleID != nil {
		updates["google_id"] = *upd.GoogleID
	}
	if upd.ProfilePictureURL != nil {
		updates["profile_picture_url"] = *upd.ProfilePictureURL
	}
	if upd.Role != nil {
		updates["role"] = string(*upd.Role)
	}

	if len(updates) > 0 {
		res := s.db.Model(&UserModel{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
				return nil, bm.ErrEmailExists
			}
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, bm.ErrUserNotFound
		}
	}
	return s.GetUserByID(id)
}

func (s *UserStore) SetOTP(email, otp string, expiry time.Time) error {
	res := s.db.Model(&UserModel{}).Where("email = ?", email).Updates(map[string]any{
		"otp":        otp,
		"otp_expiry": expiry,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return bm.ErrUserNotFound
	}
	return nil
}

func (s *UserStore) ClearOTP(id string) error {
	res := s.db.Model(&UserModel{}).Where("id = ?", id).Updates(map[string]any{
		"otp":        nil,
		"otp_expiry": nil,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return bm.ErrUserNotFound
	}
	return nil
}

// =============================================================================
// BookStore
// =============================================================================

// BookStore implements bm.BookStore using GORM
type BookStore struct {
	db *gorm.DB
}

func NewBookStore(db *gorm.DB) *BookStore {
	return &BookStore{db: db}
}

func (s *BookStore) CreateBook(book *bm.Book) error {
	return s.db.Create(BookToModel(book)).Error
}

func (s *BookStore) GetBookByID(id string) (*bm.Book, error) {
	var model BookModel
	if err := s.db.Preload("Seller").First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, bm.ErrBookNotFound
		}
		return nil, err
	}
	return model.ToBook(), nil
}

func (s *BookStore) ListBooks(filters bm.BookFilters) (*bm.BookList, error) {
	return s.list(s.db.Model(&BookModel{}), filters)
}

func (s *BookStore) ListSellerBooks(sellerID string, filters bm.BookFilters) (*bm.BookList, error) {
	return s.list(s.db.Model(&BookModel{}).Where("seller_id = ?", sellerID), filters)
}

func (s *BookStore) list(query *gorm.DB, filters bm.BookFilters) (*bm.BookList, error) {
	// Session makes the filtered query safe to run twice, once for the
	// count and once for the page.
	query = applyFilters(query, filters).Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	page := filters.Page
	if page < 1 {
		page = 1
	}
	limit := filters.Limit
	if limit < 1 {
		limit = 20
	}

	var models []BookModel
	err := query.
		Order(orderClause(filters)).
		Offset((page - 1) * limit).
		Limit(limit).
		Preload("Seller").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	books := make([]*bm.Book, len(models))
	for i := range models {
		books[i] = models[i].ToBook()
	}
	return &bm.BookList{
		Books:      books,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: int(math.Ceil(float64(total) / float64(limit))),
	}, nil
}

// applyFilters narrows the listing query. "all" and empty filter values
// mean no restriction.
func applyFilters(query *gorm.DB, filters bm.BookFilters) *gorm.DB {
	if filters.Type != "" && filters.Type != "all" {
		query = query.Where("type = ?", filters.Type)
	}
	if filters.Condition != "" && filters.Condition != "all" {
		query = query.Where("condition = ?", filters.Condition)
	}
	if filters.Search != "" {
		pattern := "%" + filters.Search + "%"
		query = query.Where("title ILIKE ? OR author ILIKE ? OR isbn ILIKE ? OR description ILIKE ?",
			pattern, pattern, pattern, pattern)
	}
	if filters.MinPrice != nil {
		query = query.Where("price >= ?", *filters.MinPrice)
	}
	if filters.MaxPrice != nil {
		query = query.Where("price <= ?", *filters.MaxPrice)
	}
	return query
}

// orderClause builds the ORDER BY from a whitelist of sortable columns.
func orderClause(filters bm.BookFilters) string {
	column := "created_at"
	switch filters.SortBy {
	case "price", "title", "author", "created_at":
		column = filters.SortBy
	}
	order := "desc"
	if filters.SortOrder == "asc" {
		order = "asc"
	}
	return fmt.Sprintf("%s %s", column, order)
}

func (s *BookStore) UpdateBook(id, sellerID string, upd bm.BookUpdate) (*bm.Book, error) {
	updates := map[string]any{}
	if upd.Title != nil {
		updates["title"] = *upd.Title
	}
	if upd.Author != nil {
		updates["author"] = *upd.Author
	}
	if upd.ISBN != nil {
		updates["isbn"] = *upd.ISBN
	}
	if upd.Type != nil {
		updates["type"] = *upd.Type
	}
	if upd.Price != nil {
		updates["price"] = *upd.Price
	}
	if upd.Description != nil {
		updates["description"] = *upd.Description
	}
	if upd.Condition != nil {
		updates["condition"] = *upd.Condition
	}
	if upd.ImageURL != nil {
		updates["image_url"] = *upd.ImageURL
	}

	if len(updates) > 0 {
		res := s.db.Model(&BookModel{}).
			Where("id = ? AND seller_id = ?", id, sellerID).
			Updates(updates)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, bm.ErrBookNotFound
		}
	} else {
		var count int64
		if err := s.db.Model(&BookModel{}).
			Where("id = ? AND seller_id = ?", id, sellerID).
			Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, bm.ErrBookNotFound
		}
	}
	return s.GetBookByID(id)
}

func (s *BookStore) DeleteBook(id, sellerID string) error {
	res := s.db.Where("id = ? AND seller_id = ?", id, sellerID).Delete(&BookModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return bm.ErrBookNotFound
	}
	return nil
}

// =============================================================================
// FileStore
// =============================================================================

// FileStore implements bm.FileStore using GORM
type FileStore struct {
	db *gorm.DB
}

func NewFileStore(db *gorm.DB) *FileStore {
	return &FileStore{db: db}
}

func (s *FileStore) CreateFile(file *bm.File) error {
	return s.db.Create(FileToModel(file)).Error
}

func (s *FileStore) ListUserFiles(userID string) ([]*bm.File, error) {
	var models []FileModel
	err := s.db.Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	files := make([]*bm.File, len(models))
	for i := range models {
		files[i] = models[i].ToFile()
	}
	return files, nil
}
