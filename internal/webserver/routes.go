package webserver

import (
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
)

type apiRoute struct {
	method      string
	path        string
	handler     echo.HandlerFunc
	middlewares []echo.MiddlewareFunc
}

var (
	routeMu        sync.Mutex
	apiRoutes      []apiRoute
	apiMiddlewares []echo.MiddlewareFunc
)

func addRoute(method, path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	routeMu.Lock()
	defer routeMu.Unlock()
	apiRoutes = append(apiRoutes, apiRoute{method: method, path: path, handler: h, middlewares: m})
}

// ApiUse adds middleware applied to every /api route.
func ApiUse(m ...echo.MiddlewareFunc) {
	routeMu.Lock()
	defer routeMu.Unlock()
	apiMiddlewares = append(apiMiddlewares, m...)
}

func ApiGET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	addRoute(http.MethodGet, path, h, m...)
}

func ApiPOST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	addRoute(http.MethodPost, path, h, m...)
}

func ApiPUT(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	addRoute(http.MethodPut, path, h, m...)
}

func ApiPATCH(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	addRoute(http.MethodPatch, path, h, m...)
}

func ApiDELETE(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	addRoute(http.MethodDelete, path, h, m...)
}

func mountRoutes(g *echo.Group) {
	routeMu.Lock()
	defer routeMu.Unlock()
	g.Use(apiMiddlewares...)
	for _, r := range apiRoutes {
		g.Add(r.method, r.path, r.handler, r.middlewares...)
	}
}
