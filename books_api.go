package bookmarket

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// BooksAPI exposes the marketplace listing endpoints. List and get are
// public; everything else sits behind RequireUser + RequireRole.
type BooksAPI struct {
	Books  BookStore
	Logger *zap.Logger
}

func (b *BooksAPI) logger() *zap.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return zap.NewNop()
}

type bookRequest struct {
	Title       string  `json:"title"`
	Author      string  `json:"author"`
	ISBN        *string `json:"isbn"`
	Type        string  `json:"type"`
	Price       float64 `json:"price"`
	Description *string `json:"description"`
	Condition   string  `json:"condition"`
	ImageURL    *string `json:"image_url"`
}

// HandleListBooks serves the public, filterable listing feed.
func (b *BooksAPI) HandleListBooks(w http.ResponseWriter, r *http.Request) {
	result, err := b.Books.ListBooks(filtersFromQuery(r, 20))
	if err != nil {
		b.logger().Error("list books failed", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Books retrieved successfully",
		"data":    result,
	})
}

func (b *BooksAPI) HandleGetBook(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	book, err := b.Books.GetBookByID(id)
	if err != nil {
		if errors.Is(err, ErrBookNotFound) {
			writeMessage(w, http.StatusNotFound, "Book not found")
			return
		}
		b.logger().Error("get book failed", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Book retrieved successfully",
		"data":    book,
	})
}

func (b *BooksAPI) HandleCreateBook(w http.ResponseWriter, r *http.Request) {
	userID := GetUserIDFromContext(r.Context())
	if userID == "" {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Title == "" || req.Author == "" || req.Type == "" || req.Condition == "" {
		writeMessage(w, http.StatusBadRequest, "Title, author, type and condition are required")
		return
	}
	if req.Price < 0 {
		writeMessage(w, http.StatusBadRequest, "Price must not be negative")
		return
	}

	book := &Book{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Author:      req.Author,
		ISBN:        req.ISBN,
		Type:        req.Type,
		Price:       req.Price,
		Description: req.Description,
		SellerID:    userID,
		Condition:   req.Condition,
		ImageURL:    req.ImageURL,
	}
	if err := b.Books.CreateBook(book); err != nil {
		b.logger().Error("create book failed", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Book created successfully",
		"data":    book,
	})
}

// HandleMyBooks lists the caller's own listings, including any that the
// public feed would filter out.
func (b *BooksAPI) HandleMyBooks(w http.ResponseWriter, r *http.Request) {
	userID := GetUserIDFromContext(r.Context())
	if userID == "" {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	result, err := b.Books.ListSellerBooks(userID, filtersFromQuery(r, 1000))
	if err != nil {
		b.logger().Error("list seller books failed", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Books retrieved successfully",
		"data":    result,
	})
}

func (b *BooksAPI) HandleUpdateBook(w http.ResponseWriter, r *http.Request) {
	userID := GetUserIDFromContext(r.Context())
	if userID == "" {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var upd struct {
		Title       *string  `json:"title"`
		Author      *string  `json:"author"`
		ISBN        *string  `json:"isbn"`
		Type        *string  `json:"type"`
		Price       *float64 `json:"price"`
		Description *string  `json:"description"`
		Condition   *string  `json:"condition"`
		ImageURL    *string  `json:"image_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	id := mux.Vars(r)["id"]
	book, err := b.Books.UpdateBook(id, userID, BookUpdate{
		Title:       upd.Title,
		Author:      upd.Author,
		ISBN:        upd.ISBN,
		Type:        upd.Type,
		Price:       upd.Price,
		Description: upd.Description,
		Condition:   upd.Condition,
		ImageURL:    upd.ImageURL,
	})
	if err != nil {
		if errors.Is(err, ErrBookNotFound) {
			writeMessage(w, http.StatusNotFound, "Book not found or you do not have permission to update it")
			return
		}
		b.logger().Error("update book failed", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Book updated successfully",
		"data":    book,
	})
}

func (b *BooksAPI) HandleDeleteBook(w http.ResponseWriter, r *http.Request) {
	userID := GetUserIDFromContext(r.Context())
	if userID == "" {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	id := mux.Vars(r)["id"]
	if err := b.Books.DeleteBook(id, userID); err != nil {
		if errors.Is(err, ErrBookNotFound) {
			writeMessage(w, http.StatusNotFound, "Book not found or you do not have permission to delete it")
			return
		}
		b.logger().Error("delete book failed", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}

	writeMessage(w, http.StatusOK, "Book deleted successfully")
}

// filtersFromQuery reads the listing filters from the query string.
func filtersFromQuery(r *http.Request, defaultLimit int) BookFilters {
	q := r.URL.Query()

	filters := BookFilters{
		Type:      q.Get("type"),
		Condition: q.Get("condition"),
		Search:    q.Get("search"),
		SortBy:    q.Get("sortBy"),
		SortOrder: q.Get("sortOrder"),
		Page:      1,
		Limit:     defaultLimit,
	}

	if v := q.Get("minPrice"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			filters.MinPrice = &f
		}
	}
	if v := q.Get("maxPrice"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			filters.MaxPrice = &f
		}
	}
	if v := q.Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filters.Page = n
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filters.Limit = n
		}
	}
	return filters
}
