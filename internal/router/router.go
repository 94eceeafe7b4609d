package router // wires HTTP routes to their handlers

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/jam-queue/internal/handler"
)

// RegisterRoutes registers the routes that require no authentication.
func RegisterRoutes(e *echo.Echo) {
    // Used by load balancers and monitoring to verify the service is up.
    e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the authentication endpoints.  Register, login,
// refresh and logout live under /v1/auth and need no existing session;
// /v1/me is protected and mostly useful for smoke tests.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, protected echo.MiddlewareFunc) {
    g := e.Group("/v1/auth")
    g.POST("/register", a.Register)
    g.POST("/login", a.Login)
    g.POST("/refresh", a.Refresh)
    // Logout accepts either a refresh token in the body or a bearer token,
    // so it stays outside the protected group.
    g.POST("/logout", a.Logout)

    auth := e.Group("/v1")
    auth.Use(protected)
    auth.GET("/me", a.Me)
}
