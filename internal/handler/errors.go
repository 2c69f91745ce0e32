package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"indieforge/backend/internal/apperr"
)

// ErrorResponse represents a generic error response.
type ErrorResponse struct {
	Error string `json:"error" example:"An error message"`
}

// MessageResponse is returned by actions that have nothing else to report.
type MessageResponse struct {
	Message string `json:"message" example:"Game deleted"`
}

// respondError maps err onto the status code of its kind. Unexpected errors
// are attached to the context for the request logger and hidden from the client.
func respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	if status == http.StatusUnauthorized {
		c.Header("WWW-Authenticate", "Bearer")
	}
	c.JSON(status, ErrorResponse{Error: apperr.Message(err)})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: bindingMessage(err)})
}

// bindingMessage turns a binding error into a client-facing message that does
// not leak decoder or struct internals.
func bindingMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError

	switch {
	case errors.As(err, &fieldErrs) && len(fieldErrs) > 0:
		fe := fieldErrs[0]
		if fe.Tag() == "required" {
			return fmt.Sprintf("Field '%s' is required", snakeCase(fe.Field()))
		}
		return fmt.Sprintf("Field '%s' is invalid", snakeCase(fe.Field()))
	case errors.As(err, &typeErr):
		if typeErr.Field == "" {
			return "Request body contains a value of the wrong type"
		}
		return fmt.Sprintf("Field '%s' has the wrong type", typeErr.Field)
	case errors.As(err, &syntaxErr), errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return "Malformed request body"
	default:
		return "Invalid request body"
	}
}

func snakeCase(name string) string {
	var b strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

// idParam parses a positive numeric path parameter.
func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid " + name})
		return 0, false
	}
	return uint(id), true
}

func intQuery(c *gin.Context, key string, def, min, max int) int {
	v, err := strconv.Atoi(c.DefaultQuery(key, strconv.Itoa(def)))
	if err != nil || v < min {
		return def
	}
	if v > max {
		return max
	}
	return v
}

func boolQuery(c *gin.Context, key string, def bool) bool {
	v, err := strconv.ParseBool(c.DefaultQuery(key, strconv.FormatBool(def)))
	if err != nil {
		return def
	}
	return v
}
