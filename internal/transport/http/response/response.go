package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"gopherai-chat/internal/app"
)

// ErrorBody matches the {"detail": ...} shape existing clients already parse.
type ErrorBody struct {
	Detail string `json:"detail"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

func Error(c *gin.Context, httpStatus int, message string) {
	c.JSON(httpStatus, ErrorBody{Detail: message})
}

// FromError maps the app error taxonomy onto a status code and reports the raw error text.
func FromError(c *gin.Context, err error) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, app.ErrGatewayCredential):
		Error(c, http.StatusInternalServerError, "API key not configured")
	case errors.Is(err, app.ErrValidation):
		Error(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrNotFound):
		Error(c, http.StatusNotFound, err.Error())
	default:
		Error(c, http.StatusInternalServerError, err.Error())
	}
}
