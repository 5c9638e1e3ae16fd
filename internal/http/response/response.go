package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	kberr "github.com/yungbote/research-kb/internal/pkg/errors"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}

// RespondDomainError maps the error taxonomy onto status codes:
// validation 400, not found 404, duplicate 409, everything else 500.
func RespondDomainError(c *gin.Context, code string, err error) {
	switch {
	case kberr.IsValidation(err):
		RespondError(c, http.StatusBadRequest, code, err)
	case kberr.IsNotFound(err):
		RespondError(c, http.StatusNotFound, code, err)
	case kberr.IsDuplicate(err):
		RespondError(c, http.StatusConflict, code, err)
	default:
		RespondError(c, http.StatusInternalServerError, code, err)
	}
}
