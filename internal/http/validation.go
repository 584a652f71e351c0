package http

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/apigate-dev/restgateway/internal/access"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerTagNameOnce sync.Once

// useJSONFieldNames makes validator report fields by their json name.
func useJSONFieldNames() {
	registerTagNameOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name, _, _ := strings.Cut(field.Tag.Get(tag), ",")
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return field.Name
		})
	})
}

// BindJSON binds the request body into obj. On failure it writes a 400
// ValidationError envelope with per-field messages and returns false.
func BindJSON(c *gin.Context, resp *Responder, obj any) bool {
	useJSONFieldNames()
	return handleBindError(c, resp, c.ShouldBindJSON(obj), "invalid JSON body")
}

// BindQuery is BindJSON for query parameters.
func BindQuery(c *gin.Context, resp *Responder, obj any) bool {
	useJSONFieldNames()
	return handleBindError(c, resp, c.ShouldBindQuery(obj), "invalid query parameters")
}

func handleBindError(c *gin.Context, resp *Responder, errBind error, fallback string) bool {
	if errBind == nil {
		return true
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(errBind, &fieldErrs) {
		ValidationFailed(c, resp, FieldMessages(fieldErrs))
		return false
	}
	resp.Error(c, http.StatusBadRequest, string(access.ValidationError), fallback)
	return false
}

// ValidationFailed aborts with a 400 envelope listing field errors.
func ValidationFailed(c *gin.Context, resp *Responder, fields map[string]string) {
	env := resp.envelope(false, access.ValidationError.Message())
	env.Code = string(access.ValidationError)
	env.Errors = fields
	c.Set(errorMessageKey, env.Message)
	c.AbortWithStatusJSON(http.StatusBadRequest, env)
}

// FieldMessages renders validator errors as field -> message.
func FieldMessages(errs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(errs))
	for _, fe := range errs {
		out[fe.Field()] = fieldMessage(fe)
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "url", "http_url":
		return "must be a valid URL"
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "numeric":
		return "must be numeric"
	default:
		return "is invalid"
	}
}
