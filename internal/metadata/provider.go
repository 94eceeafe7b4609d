// Package metadata resolves external track references to displayable
// metadata.  The service treats the provider as a black box: lookups are
// cached for a day by the caller, and provider failures map onto three
// coarse errors so the coordinator can decide between rejecting a
// submission (not found) and asking the client to retry (rate limited or
// down).
package metadata

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "net/http"
    "net/url"
    "time"
)

// TrackMetadata is what a provider knows about one external track.
type TrackMetadata struct {
    Title           string `json:"title"`
    Artist          string `json:"artist"`
    DurationSeconds uint32 `json:"duration_seconds"`
    ThumbnailURL    string `json:"thumbnail_url"`
}

// ErrNotFound means the external reference does not exist at the provider.
var ErrNotFound = errors.New("metadata: track not found")

// ErrRateLimited means the provider is throttling us; retry later.
var ErrRateLimited = errors.New("metadata: rate limited")

// ErrUnavailable means the provider could not be reached or answered with
// a server error.
var ErrUnavailable = errors.New("metadata: provider unavailable")

// Provider resolves an external reference to track metadata.
type Provider interface {
    Lookup(ctx context.Context, provider, externalID string) (*TrackMetadata, error)
}

// OEmbedClient resolves YouTube references through the public oEmbed
// endpoint.  oEmbed does not expose durations, so DurationSeconds stays
// zero; clients fall back to the player's own duration display.
type OEmbedClient struct {
    HTTP    *http.Client
    BaseURL string
}

// NewOEmbedClient returns a client with sane timeouts against the default
// endpoint.
func NewOEmbedClient() *OEmbedClient {
    return &OEmbedClient{
        HTTP:    &http.Client{Timeout: 5 * time.Second},
        BaseURL: "https://www.youtube.com/oembed",
    }
}

// Lookup implements Provider.
func (c *OEmbedClient) Lookup(ctx context.Context, provider, externalID string) (*TrackMetadata, error) {
    if provider != "youtube" {
        return nil, fmt.Errorf("%w: unsupported provider %q", ErrNotFound, provider)
    }
    watchURL := "https://www.youtube.com/watch?v=" + url.QueryEscape(externalID)
    reqURL := c.BaseURL + "?format=json&url=" + url.QueryEscape(watchURL)

    req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
    if err != nil {
        return nil, err
    }
    resp, err := c.HTTP.Do(req)
    if err != nil {
        return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
    }
    defer resp.Body.Close()

    switch {
    case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusUnauthorized:
        // oEmbed answers 401 for unlisted/removed videos.
        return nil, ErrNotFound
    case resp.StatusCode == http.StatusTooManyRequests:
        return nil, ErrRateLimited
    case resp.StatusCode != http.StatusOK:
        return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
    }

    var body struct {
        Title        string `json:"title"`
        AuthorName   string `json:"author_name"`
        ThumbnailURL string `json:"thumbnail_url"`
    }
    if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
        return nil, fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
    }
    return &TrackMetadata{
        Title:        body.Title,
        Artist:       body.AuthorName,
        ThumbnailURL: body.ThumbnailURL,
    }, nil
}
