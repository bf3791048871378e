package bookmarket

import (
	"errors"
	"time"
)

var ErrBookNotFound = errors.New("book not found")

// Book is a marketplace listing.
type Book struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Author      string  `json:"author"`
	ISBN        *string `json:"isbn,omitempty"`
	Type        string  `json:"type"`
	Price       float64 `json:"price"`
	Description *string `json:"description,omitempty"`
	SellerID    string  `json:"seller_id"`
	Condition   string  `json:"condition"`
	ImageURL    *string `json:"image_url,omitempty"`

	// Filled in on reads via the seller association.
	Seller *PublicUser `json:"seller,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BookUpdate carries the mutable listing fields. Nil fields are left
// untouched.
type BookUpdate struct {
	Title       *string
	Author      *string
	ISBN        *string
	Type        *string
	Price       *float64
	Description *string
	Condition   *string
	ImageURL    *string
}

// BookFilters narrows and orders a listing query. The "all" sentinel on
// Type and Condition means no filtering, matching what the web client
// sends for an unset dropdown.
type BookFilters struct {
	Type      string
	Condition string

	// Search matches title, author, isbn and description,
	// case-insensitively.
	Search string

	MinPrice *float64
	MaxPrice *float64

	// SortBy defaults to "created_at", SortOrder to "DESC".
	SortBy    string
	SortOrder string

	Page  int
	Limit int
}

// BookList is one page of listings plus pagination totals.
type BookList struct {
	Books      []*Book `json:"books"`
	Total      int64   `json:"total"`
	Page       int     `json:"page"`
	Limit      int     `json:"limit"`
	TotalPages int     `json:"totalPages"`
}

// BookStore manages marketplace listings.
type BookStore interface {
	CreateBook(book *Book) error

	// GetBookByID returns ErrBookNotFound when absent.
	GetBookByID(id string) (*Book, error)

	// ListBooks applies filters across all sellers.
	ListBooks(filters BookFilters) (*BookList, error)

	// ListSellerBooks applies filters scoped to one seller.
	ListSellerBooks(sellerID string, filters BookFilters) (*BookList, error)

	// UpdateBook mutates a listing only when sellerID owns it; returns
	// ErrBookNotFound otherwise.
	UpdateBook(id, sellerID string, upd BookUpdate) (*Book, error)

	// DeleteBook removes a listing only when sellerID owns it; returns
	// ErrBookNotFound otherwise.
	DeleteBook(id, sellerID string) error
}
