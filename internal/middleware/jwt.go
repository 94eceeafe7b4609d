package middleware // reusable HTTP middleware for the jam queue API

import (
    "net/http"
    "strings"

    "github.com/golang-jwt/jwt/v5"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/jam-queue/internal/config"
)

// userIDKey is the context key handlers read the acting user id from.
const userIDKey = "user_id"

// JWTAuth returns an Echo middleware that validates a Bearer access token
// and injects the token's subject into the request context as a uint64.
// Handlers access the authenticated user via CurrentUserID.
//
// When cfg.AllowAnonymous is on, a request without any Authorization header
// proceeds as cfg.AnonymousUserID instead of being rejected.  A header that
// is present but invalid is still rejected, so a broken client cannot
// silently fall back to the shared identity.
func JWTAuth(cfg config.Config) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get("Authorization")
            if auth == "" && cfg.AllowAnonymous && cfg.AnonymousUserID != 0 {
                c.Set(userIDKey, cfg.AnonymousUserID)
                return next(c)
            }
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
            }
            raw := strings.TrimPrefix(auth, "Bearer ")

            tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
                if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
                    return nil, echo.ErrUnauthorized
                }
                return []byte(cfg.JWTSecret), nil
            })
            if err != nil || !tok.Valid {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
            }

            claims, ok := tok.Claims.(jwt.MapClaims)
            if !ok {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
            }
            // JSON numbers decode as float64; ids fit without loss.
            sub, ok := claims["sub"].(float64)
            if !ok || sub <= 0 {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid subject"})
            }
            c.Set(userIDKey, uint64(sub))
            return next(c)
        }
    }
}
