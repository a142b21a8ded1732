package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pageturnapp/pageturn-server/internal/http/response"
	"github.com/pageturnapp/pageturn-server/internal/service"
)

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	bookID := r.URL.Query().Get("book_id")
	if bookID == "" {
		response.BadRequest(w, "book_id query parameter is required", s.logger)
		return
	}

	comments, err := s.commentService.ListComments(r.Context(), bookID)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, comments, s.logger)
}

func (s *Server) handleGetComment(w http.ResponseWriter, r *http.Request) {
	comment, err := s.commentService.GetComment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, comment, s.logger)
}

func (s *Server) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	var req service.CreateCommentRequest
	if err := decodeJSON(r, &req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	comment, err := s.commentService.CreateComment(r.Context(), getUserID(r.Context()), req)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Created(w, comment, s.logger)
}

type updateCommentRequest struct {
	Body string `json:"body"`
}

func (s *Server) handleUpdateComment(w http.ResponseWriter, r *http.Request) {
	var req updateCommentRequest
	if err := decodeJSON(r, &req); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	comment, err := s.commentService.UpdateComment(r.Context(), getUserID(r.Context()), chi.URLParam(r, "id"), req.Body)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, comment, s.logger)
}

func (s *Server) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	if err := s.commentService.DeleteComment(r.Context(), getUserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.NoContent(w)
}

func (s *Server) handleUpvoteComment(w http.ResponseWriter, r *http.Request) {
	if err := s.commentService.LikeComment(r.Context(), getUserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, map[string]string{"status": "liked"}, s.logger)
}

func (s *Server) handleDownvoteComment(w http.ResponseWriter, r *http.Request) {
	if err := s.commentService.UnlikeComment(r.Context(), getUserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, map[string]string{"status": "unliked"}, s.logger)
}
