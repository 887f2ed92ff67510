// Package server assembles the HTTP surface: credential exchange, the
// websocket endpoint, and health.
package server

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/wirechat/wirechat/internal/app"
)

// Server holds the echo instance and the application dependencies it
// serves.
type Server struct {
	E    *echo.Echo
	Deps *app.Dependencies
}

// New creates a new Server around an already-wired dependency set.
func New(deps *app.Dependencies) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	return &Server{E: e, Deps: deps}
}
