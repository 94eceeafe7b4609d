package handler

import (
    "fmt"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/jam-queue/internal/notifier"
    "github.com/iliyamo/jam-queue/internal/service"
)

// heartbeatInterval keeps idle SSE connections alive through proxies.
const heartbeatInterval = 25 * time.Second

// EventsHandler streams a jam's change events over server-sent events.
// A client that connects late or lags behind simply re-reads the queue;
// the stream only tells it when to do so.
type EventsHandler struct {
    Svc      *service.Coordinator
    Notifier *notifier.Notifier
}

func NewEventsHandler(svc *service.Coordinator, n *notifier.Notifier) *EventsHandler {
    return &EventsHandler{Svc: svc, Notifier: n}
}

// Stream handles GET /v1/jams/:id/events.
func (h *EventsHandler) Stream(c echo.Context) error {
    jamID, err := paramID(c)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid jam id"})
    }
    // Reject streams for jams that do not exist before committing headers.
    if _, err := h.Svc.JamStats(c.Request().Context(), jamID); err != nil {
        return writeServiceError(c, err)
    }

    sub := h.Notifier.Subscribe(jamID)
    defer sub.Close()

    w := c.Response()
    w.Header().Set(echo.HeaderContentType, "text/event-stream")
    w.Header().Set("Cache-Control", "no-cache")
    w.Header().Set("Connection", "keep-alive")
    w.WriteHeader(http.StatusOK)
    fmt.Fprintf(w, ": connected jam=%d\n\n", jamID)
    w.Flush()

    heartbeat := time.NewTicker(heartbeatInterval)
    defer heartbeat.Stop()

    ctx := c.Request().Context()
    for {
        select {
        case <-ctx.Done():
            return nil
        case <-heartbeat.C:
            fmt.Fprint(w, ": keepalive\n\n")
            w.Flush()
        case ev, ok := <-sub.C:
            if !ok {
                return nil
            }
            bs, err := ev.Encode()
            if err != nil {
                continue
            }
            fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, bs)
            w.Flush()
        }
    }
}
