package middleware

import (
	stderrors "errors"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/wms-platform/picking-engine/pkg/errors"
)

var validatorOnce sync.Once

var safeIDRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:\-]{0,127}$`)

func validateSafeID(fl validator.FieldLevel) bool {
	return safeIDRegex.MatchString(fl.Field().String())
}

// RegisterValidation adds a custom tag to gin's binding validator.
// Call it before the router serves requests.
func RegisterValidation(tag string, fn validator.Func) error {
	InitValidator()
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		return v.RegisterValidation(tag, fn)
	}
	return nil
}

// InitValidator configures gin's validator with JSON field names and the safe_id tag
func InitValidator() {
	validatorOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("safe_id", validateSafeID)
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, tag := range []string{"json", "form", "uri"} {
				name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
				if name != "" && name != "-" {
					return name
				}
			}
			return fld.Name
		})
	})
}

// ValidationErrorFormatter maps each failing field to a readable message
func ValidationErrorFormatter(err error) map[string]string {
	fields := make(map[string]string)

	var validationErrors validator.ValidationErrors
	if stderrors.As(err, &validationErrors) {
		for _, e := range validationErrors {
			fields[fieldPath(e)] = formatValidationError(e)
		}
	}
	return fields
}

// fieldPath drops the root struct name, keeping nested paths like orders[0].lines[1].locationCode
func fieldPath(e validator.FieldError) string {
	parts := strings.SplitN(e.Namespace(), ".", 2)
	if len(parts) == 2 {
		return parts[1]
	}
	return e.Field()
}

func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + e.Param()
	case "max":
		return "must be at most " + e.Param()
	case "gt":
		return "must be greater than " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "oneof":
		return "must be one of: " + e.Param()
	case "safe_id":
		return "must be an identifier of letters, digits and . _ : -"
	case "locationcode":
		return "must be a location code with aisle and section numbers (e.g. A1-S3)"
	default:
		return "is invalid"
	}
}

func bindError(err error, what string) *errors.AppError {
	var validationErrors validator.ValidationErrors
	if stderrors.As(err, &validationErrors) {
		return errors.ErrValidationWithFields("validation failed", ValidationErrorFormatter(validationErrors))
	}
	return errors.ErrBadRequest("invalid " + what + ": " + err.Error())
}

// BindAndValidate binds the JSON body into obj
func BindAndValidate(c *gin.Context, obj interface{}) *errors.AppError {
	if err := c.ShouldBindJSON(obj); err != nil {
		return bindError(err, "request body")
	}
	return nil
}

// BindQueryAndValidate binds query parameters into obj
func BindQueryAndValidate(c *gin.Context, obj interface{}) *errors.AppError {
	if err := c.ShouldBindQuery(obj); err != nil {
		return bindError(err, "query parameters")
	}
	return nil
}

// BindURIAndValidate binds path parameters into obj
func BindURIAndValidate(c *gin.Context, obj interface{}) *errors.AppError {
	if err := c.ShouldBindUri(obj); err != nil {
		return bindError(err, "path parameters")
	}
	return nil
}
