package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/pageturnapp/pageturn-server/internal/domain"
	"github.com/pageturnapp/pageturn-server/internal/store"
)

const commentColumns = `id, user_id, book_id, body, parent_id, created_at, updated_at`

// scanComment scans a comment row.
func scanComment(scanner interface{ Scan(...any) error }) (*domain.Comment, error) {
	var c domain.Comment
	var parentID sql.NullString
	var createdAt, updatedAt string

	err := scanner.Scan(
		&c.ID, &c.UserID, &c.BookID, &c.Body, &parentID,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if parentID.Valid {
		c.ParentID = &parentID.String
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &c, nil
}

// CreateComment inserts a comment.
func (s *Store) CreateComment(ctx context.Context, comment *domain.Comment) error {
	var parentID sql.NullString
	if comment.ParentID != nil {
		parentID = sql.NullString{String: *comment.ParentID, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO comments (`+commentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		comment.ID, comment.UserID, comment.BookID, comment.Body, parentID,
		formatTime(comment.CreatedAt), formatTime(comment.UpdatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return store.ErrInvalidInput.WithMessage("referenced book or comment does not exist")
		}
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

// GetComment returns a comment by ID.
func (s *Store) GetComment(ctx context.Context, id string) (*domain.Comment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+commentColumns+`
		FROM comments
		WHERE id = ?
	`, id)

	comment, err := scanComment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get comment: %w", err)
	}
	return comment, nil
}

// ListCommentsByBook returns all comments on a book, oldest first. Replies
// are included; threading is reconstructed by the caller.
func (s *Store) ListCommentsByBook(ctx context.Context, bookID string) ([]*domain.Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+commentColumns+`
		FROM comments
		WHERE book_id = ?
		ORDER BY created_at
	`, bookID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	var comments []*domain.Comment
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, comment)
	}
	return comments, rows.Err()
}

// UpdateComment rewrites a comment's body.
func (s *Store) UpdateComment(ctx context.Context, comment *domain.Comment) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE comments
		SET body = ?, updated_at = ?
		WHERE id = ?
	`, comment.Body, formatTime(comment.UpdatedAt), comment.ID)
	if err != nil {
		return fmt.Errorf("update comment: %w", err)
	}
	return requireRow(res)
}

// DeleteComment removes a comment. Replies cascade.
func (s *Store) DeleteComment(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	return requireRow(res)
}

// CreateCommentLike records a like. A user may like a comment once.
func (s *Store) CreateCommentLike(ctx context.Context, like *domain.CommentLike) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO comment_likes (id, user_id, comment_id, created_at)
		VALUES (?, ?, ?, ?)
	`, like.ID, like.UserID, like.CommentID, formatTime(like.CreatedAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.ErrAlreadyExists.WithMessage("comment already liked")
		}
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return store.ErrNotFound.WithMessage("comment not found")
		}
		return fmt.Errorf("insert comment like: %w", err)
	}
	return nil
}

// DeleteCommentLike removes a user's like from a comment.
func (s *Store) DeleteCommentLike(ctx context.Context, userID, commentID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM comment_likes WHERE user_id = ? AND comment_id = ?
	`, userID, commentID)
	if err != nil {
		return fmt.Errorf("delete comment like: %w", err)
	}
	return requireRow(res)
}

// CountCommentLikes returns the number of likes on a comment.
func (s *Store) CountCommentLikes(ctx context.Context, commentID string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM comment_likes WHERE comment_id = ?
	`, commentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count comment likes: %w", err)
	}
	return count, nil
}
