package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/storefront/internal/auth"
	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/internal/webserver"
	"go.uber.org/zap"
)

type loginPayload struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type registerPayload struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type userView struct {
	ID          int64      `json:"id,string"`
	Email       string     `json:"email"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Roles       []string   `json:"roles"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at"`
}

func newUserView(u *domain.User) userView {
	roles := u.RoleList()
	if roles == nil {
		roles = []string{}
	}
	return userView{
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Roles:       roles,
		CreatedAt:   u.CreatedAt,
		LastLoginAt: u.LastLoginAt,
	}
}

// registerAuthRoutes registers login, registration and session endpoints
func registerAuthRoutes() {
	webserver.ApiPOST("/auth/login", login)
	webserver.ApiPOST("/auth/register", register)
	webserver.ApiPOST("/auth/logout", logout)
	webserver.ApiGET("/auth/me", me, requireAuth)
}

// @Summary log in with email and password
// @Tags Auth
// @Param body body loginPayload true "Credentials"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} errorBody
// @Router /api/auth/login [post]
func login(c echo.Context) error {
	var payload loginPayload
	if err := bindJSON(c, &payload); err != nil {
		return failErr(c, err)
	}
	res, err := GetAppContext(c).Auth().Login(requestContext(c), payload.Email, payload.Password)
	if err != nil {
		return failErr(c, err)
	}
	if err := saveSession(c, res.User.ID); err != nil {
		zap.L().Warn("save login session", zap.Error(err))
	}
	return ok(c, map[string]interface{}{
		"user":       newUserView(res.User),
		"token":      res.Token,
		"token_type": "Bearer",
		"expires_at": res.ExpiresAt,
	})
}

// @Summary register a customer account
// @Tags Auth
// @Param body body registerPayload true "Account"
// @Success 201 {object} userView
// @Failure 400 {object} errorBody
// @Router /api/auth/register [post]
func register(c echo.Context) error {
	var payload registerPayload
	if err := bindJSON(c, &payload); err != nil {
		return failErr(c, err)
	}
	u, err := GetAppContext(c).Auth().Register(requestContext(c), auth.RegisterInput{
		Email:     payload.Email,
		Password:  payload.Password,
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
	})
	if err != nil {
		return failErr(c, err)
	}
	return created(c, "/api/auth/me", newUserView(u))
}

// @Summary end the browser session
// @Tags Auth
// @Success 204
// @Router /api/auth/logout [post]
func logout(c echo.Context) error {
	if err := clearSession(c); err != nil {
		zap.L().Warn("clear session", zap.Error(err))
	}
	return c.NoContent(http.StatusNoContent)
}

// @Summary current user
// @Tags Auth
// @Success 200 {object} userView
// @Router /api/auth/me [get]
func me(c echo.Context) error {
	u, err := GetAppContext(c).Auth().GetUser(requestContext(c), currentIdentity(c).UserID)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, newUserView(u))
}
