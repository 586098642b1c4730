package httperr

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Response struct {
	Status int `json:"-"`
	Error  struct {
		Message string `json:"message"`
	} `json:"error"`
	Detail any `json:"detail,omitempty"`
}

// Detail is the machine-readable part of an error response. Kind names the failure;
// Reason narrows it where the caller can act on the difference.
type Detail struct {
	Kind   string `json:"kind"`
	Reason string `json:"reason,omitempty"`
}

// preserves original error for future monitoring
func AbortWithError(c *gin.Context, status int, err error, msg string, detail any) {
	if err == nil {
		panic("AbortWithError: err cannot be nil")
	}

	resp := Response{Status: status}
	resp.Error.Message = msg
	resp.Detail = detail

	_ = c.Error(gin.Error{
		Err:  err,
		Type: gin.ErrorTypePublic,
		Meta: resp,
	})
	c.AbortWithStatusJSON(status, resp)
}

// AbortWithKind is AbortWithError with a Detail of kind.
func AbortWithKind(c *gin.Context, status int, err error, msg, kind string) {
	AbortWithError(c, status, err, msg, Detail{Kind: kind})
}

func Unauthorized(c *gin.Context, err error) {
	AbortWithKind(c, http.StatusUnauthorized, err, "Unauthorized", "auth_required")
}
