package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/picking-engine/pkg/errors"
	"github.com/wms-platform/picking-engine/pkg/logging"
)

// RequestValidator checks a request against a published HTTP contract
type RequestValidator interface {
	HasRoute(req *http.Request) bool
	ValidateRequest(ctx context.Context, req *http.Request) error
}

// ContractValidation rejects requests that break the contract with a 400.
// Routes the contract does not describe pass through untouched.
func ContractValidation(v RequestValidator, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !v.HasRoute(c.Request) {
			c.Next()
			return
		}

		if err := v.ValidateRequest(c.Request.Context(), c.Request); err != nil {
			appErr := errors.ErrValidation("request does not match the API contract").
				WithDetail("contract", err.Error())
			logError(logger, c, appErr)
			AbortWithAppError(c, appErr)
			return
		}
		c.Next()
	}
}
