package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pageturnapp/pageturn-server/internal/domain"
	domainerrors "github.com/pageturnapp/pageturn-server/internal/errors"
	"github.com/pageturnapp/pageturn-server/internal/id"
	"github.com/pageturnapp/pageturn-server/internal/store"
	"github.com/pageturnapp/pageturn-server/internal/store/sqlite"
	"github.com/pageturnapp/pageturn-server/internal/validation"
)

// BookService manages the book catalog.
type BookService struct {
	store     *sqlite.Store
	validator *validation.Validator
	logger    *slog.Logger

	now func() time.Time
}

// NewBookService creates a new book service.
func NewBookService(store *sqlite.Store, validator *validation.Validator, logger *slog.Logger) *BookService {
	return &BookService{
		store:     store,
		validator: validator,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateBookRequest is the payload for creating a book.
type CreateBookRequest struct {
	Title            string   `json:"title" validate:"required,max=255"`
	Author           string   `json:"author" validate:"required,max=255"`
	Published        string   `json:"published" validate:"max=64"`
	ShortDescription string   `json:"short_description" validate:"max=1024"`
	FullDescription  string   `json:"full_description"`
	Text             string   `json:"text"`
	CategoryIDs      []string `json:"category_ids"`
}

// CreateBook adds a book to the catalog.
func (s *BookService) CreateBook(ctx context.Context, req CreateBookRequest) (*domain.Book, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	bookID, err := id.Generate("book")
	if err != nil {
		return nil, fmt.Errorf("generate book ID: %w", err)
	}

	now := s.now().UTC()
	book := &domain.Book{
		ID:               bookID,
		Title:            req.Title,
		Author:           req.Author,
		Published:        req.Published,
		ShortDescription: req.ShortDescription,
		FullDescription:  req.FullDescription,
		Text:             req.Text,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	for _, categoryID := range req.CategoryIDs {
		book.Categories = append(book.Categories, domain.Category{ID: categoryID})
	}

	if err := s.store.CreateBook(ctx, book); err != nil {
		return nil, fmt.Errorf("create book: %w", err)
	}

	s.logger.Info("book created", "book_id", book.ID, "title", book.Title)
	return s.GetBook(ctx, book.ID)
}

// GetBook returns a book by ID.
func (s *BookService) GetBook(ctx context.Context, bookID string) (*domain.Book, error) {
	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("Book not found")
		}
		return nil, fmt.Errorf("get book: %w", err)
	}
	return book, nil
}

// ListBooks returns the catalog ordered by title.
func (s *BookService) ListBooks(ctx context.Context) ([]*domain.Book, error) {
	books, err := s.store.ListBooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

// CreateCategory adds a category.
func (s *BookService) CreateCategory(ctx context.Context, name string) (*domain.Category, error) {
	if name == "" {
		return nil, domainerrors.Validation("Category name is required")
	}

	categoryID, err := id.Generate("cat")
	if err != nil {
		return nil, fmt.Errorf("generate category ID: %w", err)
	}

	category := &domain.Category{ID: categoryID, Name: name}
	if err := s.store.CreateCategory(ctx, category); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, domainerrors.AlreadyExists("Category already exists")
		}
		return nil, fmt.Errorf("create category: %w", err)
	}
	return category, nil
}

// ListCategories returns all categories ordered by name.
func (s *BookService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}
