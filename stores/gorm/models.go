package gorm

import (
	"time"

	bm "github.com/vallury/bookmarket"
)

// UserModel is the GORM model for users
type UserModel struct {
	ID                string     `gorm:"primaryKey;size:64"`
	Name              string     `gorm:"size:255"`
	Email             string     `gorm:"size:255;uniqueIndex"`
	PasswordHash      *string    `gorm:"size:255"`
	GoogleID          *string    `gorm:"size:255;uniqueIndex"`
	OTP               *string `gorm:"size:16"`
	OTPExpiry         *time.Time
	ResetToken        *string `gorm:"size:255"`
	ResetTokenExpiry  *time.Time
	ProfilePictureURL *string `gorm:"size:512"`
	Role              string     `gorm:"size:16;default:buyer"`
	CreatedAt         time.Time  `gorm:"autoCreateTime"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime"`
}

func (UserModel) TableName() string {
	return "users"
}

func (m *UserModel) ToUser() *bm.User {
	return &bm.User{
		ID:                m.ID,
		Name:              m.Name,
		Email:             m.Email,
		PasswordHash:      m.PasswordHash,
		GoogleID:          m.GoogleID,
		OTP:               m.OTP,
		OTPExpiry:         m.OTPExpiry,
		ResetToken:        m.ResetToken,
		ResetTokenExpiry:  m.ResetTokenExpiry,
		ProfilePictureURL: m.ProfilePictureURL,
		Role:              bm.Role(m.Role),
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func UserToModel(u *bm.User) *UserModel {
	return &UserModel{
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

// BookModel is the GORM model for book listings
type BookModel struct {
	ID          string  `gorm:"primaryKey;size:64"`
	Title       string  `gorm:"size:255;index"`
	Author      string  `gorm:"size:255;index"`
	ISBN        *string `gorm:"size:32"`
	Type        string  `gorm:"size:32;index"`
	Price       float64 `gorm:"index"`
	Description *string `gorm:"type:text"`
	SellerID    string  `gorm:"size:64;index"`
	Condition   string  `gorm:"size:32"`
	ImageURL    *string `gorm:"size:512"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Seller *UserModel `gorm:"foreignKey:SellerID"`
}

func (BookModel) TableName() string {
	return "books"
}

func (m *BookModel) ToBook() *bm.Book {
	book := &bm.Book{
		ID:          m.ID,
		Title:       m.Title,
		Author:      m.Author,
		ISBN:        m.ISBN,
		Type:        m.Type,
		Price:       m.Price,
		Description: m.Description,
		SellerID:    m.SellerID,
		Condition:   m.Condition,
		ImageURL:    m.ImageURL,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	if m.Seller != nil {
		seller := m.Seller.ToUser().Public()
		book.Seller = &seller
	}
	return book
}

func BookToModel(b *bm.Book) *BookModel {
	return &BookModel{
		ID:          b.ID,
		Title:       b.Title,
		Author:      b.Author,
		ISBN:        b.ISBN,
		Type:        b.Type,
		Price:       b.Price,
		Description: b.Description,
		SellerID:    b.SellerID,
		Condition:   b.Condition,
		ImageURL:    b.ImageURL,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
}

// FileModel is the GORM model for upload records
type FileModel struct {
	ID           string `gorm:"primaryKey;size:64"`
	UserID       string `gorm:"size:64;index"`
	Filename     string `gorm:"size:255"`
	OriginalName string `gorm:"size:255"`
	MimeType     string `gorm:"size:128"`
	Size         int64
	URL          string    `gorm:"size:512"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}

func (FileModel) TableName() string {
	return "files"
}

func (m *FileModel) ToFile() *bm.File {
	return &bm.File{
		ID:           m.ID,
		UserID:       m.UserID,
		Filename:     m.Filename,
		OriginalName: m.OriginalName,
		MimeType:     m.MimeType,
		Size:         m.Size,
		URL:          m.URL,
		CreatedAt:    m.CreatedAt,
	}
}

func FileToModel(f *bm.File) *FileModel {
	return &FileModel{
		ID:           f.ID,
		UserID:       f.UserID,
		Filename:     f.Filename,
		OriginalName: f.OriginalName,
		MimeType:     f.MimeType,
		Size:         f.Size,
		URL:          f.URL,
		CreatedAt:    f.CreatedAt,
	}
}
