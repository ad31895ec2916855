package api

import (
	"context"
	"net/http"
	"strings"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/talkincode/storefront/internal/auth"
	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/internal/webserver"
	"go.uber.org/zap"
)

const (
	identityKey   = "storefront.identity"
	tokenKey      = "storefront.token"
	sessionUserID = "uid"
)

// Identity is the authenticated caller of a request.
type Identity struct {
	UserID int64
	Email  string
	Roles  []string
}

func (i *Identity) HasRole(role string) bool {
	for _, r := range i.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

func currentIdentity(c echo.Context) *Identity {
	id, _ := c.Get(identityKey).(*Identity)
	return id
}

// tokenIdentity accepts "Authorization: Bearer <jwt>". Requests without the header
// pass through untouched, a bad token is rejected with 401.
func tokenIdentity() echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		Skipper: func(c echo.Context) bool {
			return c.Request().Header.Get(echo.HeaderAuthorization) == ""
		},
		ContextKey:  tokenKey,
		TokenLookup: "header:Authorization:Bearer ",
		ParseTokenFunc: func(c echo.Context, token string) (interface{}, error) {
			return GetAppContext(c).Auth().ParseToken(token)
		},
		SuccessHandler: func(c echo.Context) {
			if claims, ok := c.Get(tokenKey).(*auth.Claims); ok {
				c.Set(identityKey, &Identity{UserID: claims.UserID, Email: claims.Email, Roles: claims.Roles})
			}
		},
		ErrorHandler: func(c echo.Context, err error) error {
			zap.L().Debug("rejected bearer token", zap.String("ip", c.RealIP()), zap.Error(err))
			return fail(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired token", nil)
		},
	})
}

// sessionIdentity falls back to the cookie session written by login.
func sessionIdentity(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if currentIdentity(c) != nil {
			return next(c)
		}
		sess, err := session.Get(webserver.SessionName, c)
		if err != nil {
			return next(c)
		}
		uid, ok := sess.Values[sessionUserID].(int64)
		if !ok || uid == 0 {
			return next(c)
		}
		u, err := GetAppContext(c).Auth().GetUser(c.Request().Context(), uid)
		if err != nil {
			zap.L().Debug("session user lookup", zap.Int64("user", uid), zap.Error(err))
			return next(c)
		}
		c.Set(identityKey, &Identity{UserID: u.ID, Email: u.Email, Roles: u.RoleList()})
		return next(c)
	}
}

func requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if currentIdentity(c) == nil {
			return fail(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
		}
		return next(c)
	}
}

// requireRole answers 401 without identity and 403 when the role is missing.
func requireRole(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := currentIdentity(c)
			if id == nil {
				return fail(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
			}
			if !id.HasRole(role) {
				return fail(c, http.StatusForbidden, "FORBIDDEN", "Requires role "+role, nil)
			}
			return next(c)
		}
	}
}

var requireAdmin = requireRole(domain.RoleAdmin)

func saveSession(c echo.Context, userID int64) error {
	sess, err := session.Get(webserver.SessionName, c)
	if err != nil {
		return err
	}
	sess.Values[sessionUserID] = userID
	return sess.Save(c.Request(), c.Response())
}

func clearSession(c echo.Context) error {
	sess, err := session.Get(webserver.SessionName, c)
	if err != nil {
		return err
	}
	delete(sess.Values, sessionUserID)
	sess.Options.MaxAge = -1
	return sess.Save(c.Request(), c.Response())
}

func requestContext(c echo.Context) context.Context {
	return c.Request().Context()
}
