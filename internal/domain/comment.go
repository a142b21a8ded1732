package domain

import "time"

// Comment is a user comment on a book. A comment with a non-nil
// ParentID is a reply; replies always belong to the same book as
// their parent.
type Comment struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	BookID    string    `json:"book_id"`
	Body      string    `json:"body"`
	ParentID  *string   `json:"parent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsReply reports whether the comment is a reply to another comment.
func (c *Comment) IsReply() bool {
	return c.ParentID != nil
}

// CommentLike records that a user liked a comment. A user can like a
// given comment at most once.
type CommentLike struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CommentID string    `json:"comment_id"`
	CreatedAt time.Time `json:"created_at"`
}
