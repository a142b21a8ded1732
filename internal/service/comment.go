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

// CommentService manages threaded comments and likes on books.
type CommentService struct {
	store     *sqlite.Store
	validator *validation.Validator
	logger    *slog.Logger

	now func() time.Time
}

// NewCommentService creates a new comment service.
func NewCommentService(store *sqlite.Store, validator *validation.Validator, logger *slog.Logger) *CommentService {
	return &CommentService{
		store:     store,
		validator: validator,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateCommentRequest is the payload for posting a comment.
type CreateCommentRequest struct {
	BookID   string  `json:"book_id" validate:"required"`
	Body     string  `json:"body" validate:"required,max=4096"`
	ParentID *string `json:"parent"`
}

// CommentView is a comment with its like count and nested replies.
type CommentView struct {
	*domain.Comment
	Likes   int64          `json:"likes"`
	Replies []*CommentView `json:"replies"`
}

// CreateComment posts a comment on a book. A reply's parent must exist and
// belong to the same book.
func (s *CommentService) CreateComment(ctx context.Context, userID string, req CreateCommentRequest) (*domain.Comment, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	if _, err := s.store.GetBook(ctx, req.BookID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("Book not found")
		}
		return nil, fmt.Errorf("get book: %w", err)
	}

	if req.ParentID != nil {
		parent, err := s.store.GetComment(ctx, *req.ParentID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, domainerrors.Validation("Parent comment does not exist")
			}
			return nil, fmt.Errorf("get parent comment: %w", err)
		}
		if parent.BookID != req.BookID {
			return nil, domainerrors.Validation("Parent comment belongs to a different book")
		}
	}

	commentID, err := id.Generate("cmt")
	if err != nil {
		return nil, fmt.Errorf("generate comment ID: %w", err)
	}

	now := s.now().UTC()
	comment := &domain.Comment{
		ID:        commentID,
		UserID:    userID,
		BookID:    req.BookID,
		Body:      req.Body,
		ParentID:  req.ParentID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateComment(ctx, comment); err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}

	s.logger.Info("comment created", "comment_id", comment.ID, "book_id", comment.BookID)
	return comment, nil
}

// GetComment returns a single comment with its like count and replies.
func (s *CommentService) GetComment(ctx context.Context, commentID string) (*CommentView, error) {
	comment, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("Comment not found")
		}
		return nil, fmt.Errorf("get comment: %w", err)
	}

	views, err := s.thread(ctx, comment.BookID)
	if err != nil {
		return nil, err
	}
	if view := findView(views, commentID); view != nil {
		return view, nil
	}
	// Comment exists but its thread root was deleted between queries.
	return nil, domainerrors.NotFound("Comment not found")
}

// ListComments returns a book's root comments with nested replies, oldest
// first.
func (s *CommentService) ListComments(ctx context.Context, bookID string) ([]*CommentView, error) {
	if _, err := s.store.GetBook(ctx, bookID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("Book not found")
		}
		return nil, fmt.Errorf("get book: %w", err)
	}
	return s.thread(ctx, bookID)
}

// thread loads a book's comments and assembles the reply tree.
func (s *CommentService) thread(ctx context.Context, bookID string) ([]*CommentView, error) {
	comments, err := s.store.ListCommentsByBook(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}

	byID := make(map[string]*CommentView, len(comments))
	for _, c := range comments {
		likes, err := s.store.CountCommentLikes(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("count likes: %w", err)
		}
		byID[c.ID] = &CommentView{Comment: c, Likes: likes, Replies: []*CommentView{}}
	}

	roots := []*CommentView{}
	for _, c := range comments {
		view := byID[c.ID]
		if c.ParentID != nil {
			if parent, ok := byID[*c.ParentID]; ok {
				parent.Replies = append(parent.Replies, view)
				continue
			}
		}
		roots = append(roots, view)
	}
	return roots, nil
}

func findView(views []*CommentView, commentID string) *CommentView {
	for _, view := range views {
		if view.ID == commentID {
			return view
		}
		if found := findView(view.Replies, commentID); found != nil {
			return found
		}
	}
	return nil
}

// UpdateComment edits a comment's body. Only the author may edit.
func (s *CommentService) UpdateComment(ctx context.Context, userID, commentID, body string) (*domain.Comment, error) {
	if body == "" {
		return nil, domainerrors.Validation("Comment body is required")
	}

	comment, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("Comment not found")
		}
		return nil, fmt.Errorf("get comment: %w", err)
	}
	if comment.UserID != userID {
		return nil, domainerrors.Forbidden("Only the author can edit a comment")
	}

	comment.Body = body
	comment.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateComment(ctx, comment); err != nil {
		return nil, fmt.Errorf("update comment: %w", err)
	}
	return comment, nil
}

// DeleteComment removes a comment and its replies. Only the author may
// delete.
func (s *CommentService) DeleteComment(ctx context.Context, userID, commentID string) error {
	comment, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domainerrors.NotFound("Comment not found")
		}
		return fmt.Errorf("get comment: %w", err)
	}
	if comment.UserID != userID {
		return domainerrors.Forbidden("Only the author can delete a comment")
	}

	if err := s.store.DeleteComment(ctx, commentID); err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	return nil
}

// LikeComment records the user's like on a comment. Liking twice is a
// validation error.
func (s *CommentService) LikeComment(ctx context.Context, userID, commentID string) error {
	if _, err := s.store.GetComment(ctx, commentID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domainerrors.NotFound("Comment not found")
		}
		return fmt.Errorf("get comment: %w", err)
	}

	likeID, err := id.Generate("like")
	if err != nil {
		return fmt.Errorf("generate like ID: %w", err)
	}

	like := &domain.CommentLike{
		ID:        likeID,
		UserID:    userID,
		CommentID: commentID,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreateCommentLike(ctx, like); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domainerrors.Validation("Like already exists")
		}
		return fmt.Errorf("create like: %w", err)
	}
	return nil
}

// UnlikeComment removes the user's like from a comment.
func (s *CommentService) UnlikeComment(ctx context.Context, userID, commentID string) error {
	if err := s.store.DeleteCommentLike(ctx, userID, commentID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domainerrors.NotFound("Like does not exist")
		}
		return fmt.Errorf("delete like: %w", err)
	}
	return nil
}
