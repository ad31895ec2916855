package webserver

import (
	"context"
	"errors"
	"net/http"
	"time"
	"unsafe"

	"github.com/gorilla/sessions"
	jsoniter "github.com/json-iterator/go"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/shopspring/decimal"
	"github.com/talkincode/storefront/config"
	"go.uber.org/zap"
)

// ContextKeyApp is the echo context key holding the application context.
const ContextKeyApp = "storefront.app"

// SessionName is the cookie session used by browser logins.
const SessionName = "storefront_session"

type WebServer struct {
	root *echo.Echo
	addr string
}

// NewWebServer builds the echo instance and mounts every registered /api route.
// appctx is made available to handlers under ContextKeyApp.
func NewWebServer(cfg *config.AppConfig, appctx interface{}) *WebServer {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = &JSONSerializer{}
	e.Validator = NewValidator()
	e.HTTPErrorHandler = httpErrorHandler
	if cfg.System.Debug {
		e.Logger.SetLevel(log.DEBUG)
	} else {
		e.Logger.SetLevel(log.INFO)
	}

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			zap.L().Error("panic recovered",
				zap.String("uri", c.Request().RequestURI),
				zap.Error(err),
				zap.ByteString("stack", stack))
			return err
		},
	}))
	e.Use(requestLogger())
	e.Use(session.Middleware(newCookieStore(cfg.Web.Secret)))
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(ContextKeyApp, appctx)
			return next(c)
		}
	})

	mountRoutes(e.Group("/api"))
	return &WebServer{root: e, addr: cfg.WebAddr()}
}

func newCookieStore(secret string) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogMethod:   true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("ip", v.RemoteIP),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			if v.Status >= http.StatusInternalServerError {
				zap.L().Error("http request", fields...)
			} else {
				zap.L().Debug("http request", fields...)
			}
			return nil
		},
	})
}

// httpErrorHandler renders errors that escape handlers, such as unknown routes,
// in the same envelope the api handlers use.
func httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	msg := http.StatusText(code)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if s, ok := he.Message.(string); ok {
			msg = s
		} else {
			msg = http.StatusText(code)
		}
	} else {
		zap.L().Error("unhandled error", zap.String("uri", c.Request().RequestURI), zap.Error(err))
	}
	body := map[string]interface{}{
		"code":    errorCode(code),
		"message": msg,
	}
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, body)
	}
	if err != nil {
		zap.L().Error("write error response", zap.Error(err))
	}
}

func errorCode(status int) string {
	switch status {
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusBadRequest:
		return "INVALID_REQUEST"
	default:
		return "INTERNAL_ERROR"
	}
}

// Echo exposes the underlying instance, mostly for httptest.
func (s *WebServer) Echo() *echo.Echo {
	return s.root
}

func (s *WebServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.root.ServeHTTP(w, r)
}

// Start blocks serving http until Shutdown is called.
func (s *WebServer) Start() error {
	zap.S().Infof("storefront api listening on %s", s.addr)
	s.root.Server.ReadHeaderTimeout = 10 * time.Second
	err := s.root.Start(s.addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *WebServer) Shutdown(ctx context.Context) error {
	return s.root.Shutdown(ctx)
}

// JSONSerializer implements echo.JSONSerializer with json-iterator.
type JSONSerializer struct{}

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Money fields always carry two decimal places, "10.00" rather than "10".
func init() {
	jsoniter.RegisterTypeEncoderFunc("decimal.Decimal", func(ptr unsafe.Pointer, stream *jsoniter.Stream) {
		stream.WriteString((*decimal.Decimal)(ptr).StringFixed(2))
	}, nil)
}

func (JSONSerializer) Serialize(c echo.Context, i interface{}, indent string) error {
	enc := jsonAPI.NewEncoder(c.Response())
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc.Encode(i)
}

func (JSONSerializer) Deserialize(c echo.Context, i interface{}) error {
	err := jsonAPI.NewDecoder(c.Request().Body).Decode(i)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed JSON body").SetInternal(err)
	}
	return nil
}
