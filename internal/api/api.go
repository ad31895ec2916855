// Package api exposes the storefront over HTTP under /api.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/storefront/internal/app"
	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/internal/webserver"
	"go.uber.org/zap"
)

var initOnce sync.Once

// Init registers every api route with the webserver. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		webserver.ApiUse(tokenIdentity(), sessionIdentity)
		registerHealthRoutes()
		registerAuthRoutes()
		registerProductRoutes()
		registerOrderRoutes()
		registerAdminRoutes()
		registerDocsRoutes()
	})
}

// GetAppContext returns the application bound to the request.
func GetAppContext(c echo.Context) app.AppContext {
	appctx, ok := c.Get(webserver.ContextKeyApp).(app.AppContext)
	if !ok {
		panic("storefront: application context missing from request")
	}
	return appctx
}

type errorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func ok(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, data)
}

// created answers 201 with a Location header pointing at the new resource.
func created(c echo.Context, location string, data interface{}) error {
	if location != "" {
		c.Response().Header().Set(echo.HeaderLocation, location)
	}
	return c.JSON(http.StatusCreated, data)
}

func fail(c echo.Context, status int, code, message string, details interface{}) error {
	return c.JSON(status, errorBody{Code: code, Message: message, Details: details})
}

// failErr maps domain errors to their http status. Anything unrecognised is logged and answered with 500.
func failErr(c echo.Context, err error) error {
	var verr *domain.ValidationError
	var serr *domain.StockError
	switch {
	case errors.As(err, &verr):
		return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", verr.Fields)
	case errors.As(err, &serr):
		return fail(c, http.StatusBadRequest, "INSUFFICIENT_STOCK", serr.Error(), map[string]interface{}{
			"product_id": strconv.FormatInt(serr.ProductID, 10),
			"requested":  serr.Requested,
			"available":  serr.Available,
		})
	case errors.Is(err, domain.ErrInsufficientStock):
		return fail(c, http.StatusBadRequest, "INSUFFICIENT_STOCK", err.Error(), nil)
	case errors.Is(err, domain.ErrProductUnavailable):
		return fail(c, http.StatusBadRequest, "PRODUCT_UNAVAILABLE", err.Error(), nil)
	case errors.Is(err, domain.ErrInvalidTransition):
		return fail(c, http.StatusBadRequest, "INVALID_TRANSITION", err.Error(), nil)
	case errors.Is(err, domain.ErrConflict):
		return fail(c, http.StatusBadRequest, "CONFLICT", err.Error(), nil)
	case errors.Is(err, domain.ErrNotFound):
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Resource not found", nil)
	case errors.Is(err, domain.ErrUnauthorized):
		return fail(c, http.StatusUnauthorized, "UNAUTHORIZED", err.Error(), nil)
	case errors.Is(err, domain.ErrForbidden):
		return fail(c, http.StatusForbidden, "FORBIDDEN", err.Error(), nil)
	case errors.Is(err, context.Canceled):
		return fail(c, http.StatusBadRequest, "REQUEST_CANCELLED", "Request cancelled", nil)
	default:
		zap.L().Error("request failed",
			zap.String("method", c.Request().Method),
			zap.String("uri", c.Request().RequestURI),
			zap.Error(err))
		return fail(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
	}
}

// bindJSON decodes the body and runs the struct validator. Both failures come
// back as *domain.ValidationError.
func bindJSON(c echo.Context, v interface{}) error {
	if err := c.Bind(v); err != nil {
		verr := &domain.ValidationError{}
		verr.Add("body", "unable to parse request body")
		return verr
	}
	return c.Validate(v)
}

func parseID(c echo.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// audit records an admin mutation. Failures are logged only.
func audit(c echo.Context, action, detail string) {
	actor := "anonymous"
	if id := currentIdentity(c); id != nil {
		actor = id.Email
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := GetAppContext(c).Store().AuditLogs().Create(ctx, &domain.AuditLog{
		Actor:  actor,
		IP:     c.RealIP(),
		Action: action,
		Detail: detail,
	})
	if err != nil {
		zap.L().Error("write audit log", zap.String("action", action), zap.Error(err))
	}
}
