package response

import "github.com/gin-gonic/gin"

const (
	CodeOK                = 0
	CodeBadRequest        = 40000
	CodeNotPDF            = 40001
	CodeNoActiveDocuments = 40002
	CodeInternalServer    = 50000
	CodeIngestionFailed   = 50201
	CodeIngestionTimeout  = 50202
	CodeNoResolvableDocs  = 50203
	CodeGenerationFailed  = 50204
)

type APIResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(200, APIResponse{
		Code:    CodeOK,
		Message: "ok",
		Data:    data,
	})
}

func Error(c *gin.Context, httpStatus, code int, message string) {
	c.JSON(httpStatus, APIResponse{
		Code:    code,
		Message: message,
	})
}
