package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"docuchat/internal/app"
	"docuchat/internal/transport/http/response"
)

// 20 MiB, the Bot API document ceiling for bots.
const maxUploadBytes = 20 << 20

type DocumentHandler struct {
	documentService *app.DocumentService
	registry        app.DeskRegistry
}

func NewDocumentHandler(documentService *app.DocumentService, registry app.DeskRegistry) *DocumentHandler {
	return &DocumentHandler{documentService: documentService, registry: registry}
}

// Upload receives a PDF as multipart form data and puts it on the user's
// desk. Re-sending identical bytes is answered from the local record without
// a second remote upload.
func (h *DocumentHandler) Upload(c *gin.Context) {
	userID, ok := parseUserID(c.PostForm("user_id"))
	if !ok {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid user_id")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file field")
		return
	}
	if fileHeader.Size > maxUploadBytes {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "file too large")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "read upload failed")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "read upload failed")
		return
	}

	result, err := h.documentService.Receive(c.Request.Context(), app.ReceiveInput{
		UserID:      userID,
		Content:     content,
		DisplayName: fileHeader.Filename,
		SourceRef:   c.PostForm("source_ref"),
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrNotPDF):
			response.Error(c, http.StatusBadRequest, response.CodeNotPDF, err.Error())
		case errors.Is(err, app.ErrIngestionFailed):
			response.Error(c, http.StatusBadGateway, response.CodeIngestionFailed, "the document could not be processed, try another file")
		case errors.Is(err, app.ErrIngestionTimeout):
			response.Error(c, http.StatusGatewayTimeout, response.CodeIngestionTimeout, "document processing timed out, try again later")
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "document upload failed")
		}
		return
	}

	response.OK(c, result)
}

// List returns the user's current desk.
func (h *DocumentHandler) List(c *gin.Context) {
	userID, ok := parseUserID(c.Query("user_id"))
	if !ok {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid user_id")
		return
	}

	docs := h.registry.ActiveDocuments(userID)
	response.OK(c, gin.H{
		"documents": docs,
		"desk_size": len(docs),
	})
}

func parseUserID(raw string) (int64, bool) {
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID == 0 {
		return 0, false
	}
	return userID, true
}
