package handler

import (
    "errors"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/jam-queue/internal/middleware"
    "github.com/iliyamo/jam-queue/internal/model"
    "github.com/iliyamo/jam-queue/internal/service"
)

// JamHandler exposes the queue operations over HTTP.  It owns no logic:
// every request is parse, delegate to the coordinator, translate the error.
type JamHandler struct {
    Svc *service.Coordinator
}

func NewJamHandler(svc *service.Coordinator) *JamHandler {
    return &JamHandler{Svc: svc}
}

type createJamReq struct {
    Name string `json:"name"`
}

type submitTrackReq struct {
    Provider   string `json:"provider"`
    ExternalID string `json:"external_id"`
}

type castVoteReq struct {
    Direction string `json:"direction"` // "up" or "down", case-insensitive
}

type jamResp struct {
    ID        uint64    `json:"id"`
    Name      string    `json:"name"`
    HostID    uint64    `json:"host_id"`
    CreatedAt time.Time `json:"created_at"`
}

type trackResp struct {
    ID              uint64    `json:"id"`
    JamID           uint64    `json:"jam_id"`
    Provider        string    `json:"provider"`
    ExternalID      string    `json:"external_id"`
    Title           string    `json:"title"`
    Artist          string    `json:"artist"`
    DurationSeconds uint32    `json:"duration_seconds"`
    ThumbnailURL    string    `json:"thumbnail_url"`
    SubmitterID     uint64    `json:"submitter_id"`
    CreatedAt       time.Time `json:"created_at"`
}

// CreateJam handles POST /v1/jams.
func (h *JamHandler) CreateJam(c echo.Context) error {
    var req createJamReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    jam, err := h.Svc.CreateJam(c.Request().Context(), middleware.CurrentUserID(c), req.Name)
    if err != nil {
        return writeServiceError(c, err)
    }
    return c.JSON(http.StatusCreated, jamResp{
        ID: jam.ID, Name: jam.Name, HostID: jam.HostID, CreatedAt: jam.CreatedAt,
    })
}

// SubmitTrack handles POST /v1/jams/:id/tracks.
func (h *JamHandler) SubmitTrack(c echo.Context) error {
    jamID, err := paramID(c)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid jam id"})
    }
    var req submitTrackReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    track, err := h.Svc.SubmitTrack(c.Request().Context(), jamID, middleware.CurrentUserID(c), req.Provider, req.ExternalID)
    if err != nil {
        return writeServiceError(c, err)
    }
    return c.JSON(http.StatusCreated, trackResp{
        ID: track.ID, JamID: track.JamID,
        Provider: track.Provider, ExternalID: track.ExternalID,
        Title: track.Title, Artist: track.Artist,
        DurationSeconds: track.DurationSeconds, ThumbnailURL: track.ThumbnailURL,
        SubmitterID: track.SubmitterID, CreatedAt: track.CreatedAt,
    })
}

// CastVote handles POST /v1/tracks/:id/vote.
func (h *JamHandler) CastVote(c echo.Context) error {
    trackID, err := paramID(c)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid track id"})
    }
    var req castVoteReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    dir := model.Direction(strings.ToUpper(strings.TrimSpace(req.Direction)))
    res, err := h.Svc.CastVote(c.Request().Context(), middleware.CurrentUserID(c), trackID, dir)
    if err != nil {
        return writeServiceError(c, err)
    }
    return c.JSON(http.StatusOK, res)
}

// AdvanceNext handles POST /v1/jams/:id/next.
func (h *JamHandler) AdvanceNext(c echo.Context) error {
    jamID, err := paramID(c)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid jam id"})
    }
    res, err := h.Svc.AdvanceNext(c.Request().Context(), jamID)
    if err != nil {
        return writeServiceError(c, err)
    }
    return c.JSON(http.StatusOK, res)
}

// Queue handles GET /v1/jams/:id/queue.  When the request carries an
// identity the snapshot is decorated with that user's own votes.
func (h *JamHandler) Queue(c echo.Context) error {
    jamID, err := paramID(c)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid jam id"})
    }
    snap, err := h.Svc.QueueView(c.Request().Context(), jamID, middleware.CurrentUserID(c))
    if err != nil {
        return writeServiceError(c, err)
    }
    return c.JSON(http.StatusOK, snap)
}

// Stats handles GET /v1/jams/:id/stats.
func (h *JamHandler) Stats(c echo.Context) error {
    jamID, err := paramID(c)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid jam id"})
    }
    st, err := h.Svc.JamStats(c.Request().Context(), jamID)
    if err != nil {
        return writeServiceError(c, err)
    }
    return c.JSON(http.StatusOK, st)
}

// TrackScore handles GET /v1/tracks/:id/score.
func (h *JamHandler) TrackScore(c echo.Context) error {
    trackID, err := paramID(c)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid track id"})
    }
    score, err := h.Svc.TrackScore(c.Request().Context(), trackID)
    if err != nil {
        return writeServiceError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"track_id": trackID, "net_score": score})
}

func paramID(c echo.Context) (uint64, error) {
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || id == 0 {
        return 0, errors.New("invalid id")
    }
    return id, nil
}

// writeServiceError maps the service error taxonomy onto status codes.
// Conflicts get 409 so clients know a re-read plus retry will succeed;
// storage failures get 503 because they are transient by definition.
func writeServiceError(c echo.Context, err error) error {
    switch {
    case errors.Is(err, service.ErrValidation):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    case errors.Is(err, service.ErrAuthentication):
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": err.Error()})
    case errors.Is(err, service.ErrAuthorization):
        return c.JSON(http.StatusForbidden, echo.Map{"error": err.Error()})
    case errors.Is(err, service.ErrNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
    case errors.Is(err, service.ErrConflict):
        return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
    case errors.Is(err, service.ErrStorage):
        return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": err.Error()})
    default:
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
    }
}
