package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"docuchat/internal/app"
	"docuchat/internal/transport/http/response"
)

type ChatHandler struct {
	chatService *app.ChatService
}

type QueryRequest struct {
	UserID int64  `json:"user_id" binding:"required"`
	ChatID int64  `json:"chat_id"`
	Query  string `json:"query" binding:"required"`
}

type ClearRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

func NewChatHandler(chatService *app.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

func (h *ChatHandler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.chatService.Ask(c.Request.Context(), app.AskInput{
		UserID: req.UserID,
		ChatID: req.ChatID,
		Query:  req.Query,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput), errors.Is(err, app.ErrEmptyQuery):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrNoActiveDocuments):
			response.Error(c, http.StatusConflict, response.CodeNoActiveDocuments, "send a PDF first, then ask about it")
		case errors.Is(err, app.ErrNoResolvableDocuments):
			response.Error(c, http.StatusConflict, response.CodeNoResolvableDocs, "attached documents expired upstream, clear the session and re-upload")
		case errors.Is(err, app.ErrNoCandidates), errors.Is(err, app.ErrAllCandidatesFailed):
			response.Error(c, http.StatusBadGateway, response.CodeGenerationFailed, "answer generation failed, try rephrasing the question")
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "query failed")
		}
		return
	}

	response.OK(c, result)
}

func (h *ChatHandler) Clear(c *gin.Context) {
	var req ClearRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	cleared, err := h.chatService.ClearSession(req.UserID)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		return
	}

	response.OK(c, gin.H{"cleared": cleared})
}

func (h *ChatHandler) History(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil || userID == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid user_id")
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if parsed, parseErr := strconv.Atoi(raw); parseErr == nil {
			limit = parsed
		}
	}

	history, err := h.chatService.History(c.Request.Context(), userID, limit)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "get history failed")
		return
	}

	response.OK(c, history)
}
