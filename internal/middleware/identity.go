package middleware

// identity.go holds the helpers that read the authenticated identity back
// out of the Echo context, shared by handlers and the rate limiter.

import (
    "strconv"

    "github.com/labstack/echo/v4"
)

// CurrentUserID returns the authenticated user's id, or 0 when the request
// carries no identity (public routes without JWTAuth in the chain).
func CurrentUserID(c echo.Context) uint64 {
    if v := c.Get(userIDKey); v != nil {
        if id, ok := v.(uint64); ok {
            return id
        }
    }
    return 0
}

// rateKeyUserID renders the identity for rate-limit key building.
func rateKeyUserID(c echo.Context) string {
    if id := CurrentUserID(c); id != 0 {
        return strconv.FormatUint(id, 10)
    }
    return "anon"
}
