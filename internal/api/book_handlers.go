package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pageturnapp/pageturn-server/internal/domain"
	"github.com/pageturnapp/pageturn-server/internal/http/response"
	"github.com/pageturnapp/pageturn-server/internal/service"
)

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := s.bookService.ListBooks(r.Context())
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	// Listing omits full text; clients fetch the detail view to read.
	type listItem struct {
		*domain.Book
		Text       string   `json:"text,omitempty"`
		Categories []string `json:"categories"`
	}
	items := make([]listItem, 0, len(books))
	for _, book := range books {
		items = append(items, listItem{Book: book, Categories: book.CategoryNames()})
	}

	response.Success(w, items, s.logger)
}

type bookDetail struct {
	*domain.Book
	Categories  []string   `json:"categories"`
	LastReading *time.Time `json:"last_reading"`
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "id")

	book, err := s.bookService.GetBook(r.Context(), bookID)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	detail := bookDetail{Book: book, Categories: book.CategoryNames()}

	// Authenticated readers also see when they last finished reading the
	// book. Null for anonymous users and users with no finished sessions.
	if userID := getUserID(r.Context()); userID != "" {
		last, err := s.readingService.LastFinishedReading(r.Context(), userID, bookID)
		if err != nil {
			response.HandleError(w, err, s.logger)
			return
		}
		if last != nil {
			detail.LastReading = last.StoppedAt
		}
	}

	response.Success(w, detail, s.logger)
}

func (s *Server) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	var req service.CreateBookRequest
	if err := decodeJSON(r, &req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	book, err := s.bookService.CreateBook(r.Context(), req)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Created(w, book, s.logger)
}

func (s *Server) handleStartReading(w http.ResponseWriter, r *http.Request) {
	session, err := s.readingService.StartReading(r.Context(), getUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Created(w, session, s.logger)
}

func (s *Server) handleStopReading(w http.ResponseWriter, r *http.Request) {
	session, err := s.readingService.StopReading(r.Context(), getUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, session, s.logger)
}

func (s *Server) handleReadingHistory(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.readingService.History(r.Context(), getUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	if sessions == nil {
		sessions = []*domain.ReadingSession{}
	}

	response.Success(w, sessions, s.logger)
}

func (s *Server) handleReadingStatistic(w http.ResponseWriter, r *http.Request) {
	total, err := s.readingService.TotalReadingTime(r.Context(), getUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, map[string]int64{"total_reading_seconds": total}, s.logger)
}

type createCategoryRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	category, err := s.bookService.CreateCategory(r.Context(), req.Name)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Created(w, category, s.logger)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.bookService.ListCategories(r.Context())
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, categories, s.logger)
}
