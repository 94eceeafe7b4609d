package router

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/jam-queue/internal/handler"
)

// RegisterJam registers the queue endpoints.  Reads are open to anyone who
// can name the jam; mutations require an identity and pass through the
// rate limiter so a browser loop cannot flood the vote table.
func RegisterJam(e *echo.Echo, j *handler.JamHandler, ev *handler.EventsHandler, protected, limited echo.MiddlewareFunc) {
    // Public reads.
    e.GET("/v1/jams/:id/queue", j.Queue, optional(protected))
    e.GET("/v1/jams/:id/stats", j.Stats)
    e.GET("/v1/tracks/:id/score", j.TrackScore)
    e.GET("/v1/jams/:id/events", ev.Stream)

    // Mutations.
    m := e.Group("/v1")
    m.Use(protected)
    m.Use(limited)
    m.POST("/jams", j.CreateJam)
    m.POST("/jams/:id/tracks", j.SubmitTrack)
    m.POST("/tracks/:id/vote", j.CastVote)
    m.POST("/jams/:id/next", j.AdvanceNext)
}

// optional runs the given middleware only when the request carries an
// Authorization header, so the queue read can decorate the snapshot with
// the viewer's votes without forcing guests to authenticate.
func optional(mw echo.MiddlewareFunc) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        wrapped := mw(next)
        return func(c echo.Context) error {
            if c.Request().Header.Get("Authorization") == "" {
                return next(c)
            }
            return wrapped(c)
        }
    }
}
