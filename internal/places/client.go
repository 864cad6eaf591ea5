package places

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/cherryrecorder/edge-server/internal/logger"
)

const (
	defaultBaseURL = "https://places.googleapis.com"
	maxRetries     = 3
	retryBaseDelay = 100 * time.Millisecond
)

// ErrAPIKeyMissing is returned by every operation when no upstream
// credential is configured; the REST handler maps it to a 400.
var ErrAPIKeyMissing = errors.New("places: API key not configured")

// UpstreamError carries a non-2xx upstream response through unchanged, so
// the REST caller can forward the original status and body verbatim.
type UpstreamError struct {
	StatusCode int
	Body       []byte
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("places: upstream status %d: %s", e.StatusCode, string(e.Body))
}

// Client proxies Nearby Search, Text Search, Place Details, and Place
// Photo calls to the upstream Places API, injecting the server-held API
// key so it never has to pass through edge-server's own clients.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a Client. An empty apiKey is allowed at construction
// time; every operation returns ErrAPIKeyMissing until one is configured.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

// APIKey returns the configured upstream credential, for the /maps/key
// endpoint that hands it to trusted client-side map SDKs.
func (c *Client) APIKey() string {
	return c.apiKey
}

// NearbySearch proxies a nearby-search request and returns the trimmed,
// rounded, distance-sorted, 5-capped result set.
func (c *Client) NearbySearch(ctx context.Context, req NearbySearchRequest) (SearchResponse, error) {
	radius := req.Radius
	if radius <= 0 {
		radius = defaultRadiusMeters
	}
	body := upstreamNearbyRequest{
		LocationRestriction: &upstreamLocationRestriction{
			Circle: upstreamCircle{
				Center: upstreamLocation{Latitude: req.Latitude, Longitude: req.Longitude},
				Radius: radius,
			},
		},
	}

	raw, err := c.post(ctx, "/v1/places:searchNearby", searchFieldMask, body)
	if err != nil {
		return SearchResponse{}, err
	}
	return decodeSearch(raw, req.Latitude, req.Longitude, true)
}

// TextSearch proxies a free-text search request. Landmark-style queries
// omit the location bias so a national search can succeed.
func (c *Client) TextSearch(ctx context.Context, req TextSearchRequest) (SearchResponse, error) {
	body := upstreamTextRequest{TextQuery: req.Query}

	hasCenter := req.Latitude != 0 || req.Longitude != 0
	if hasCenter && !isLandmarkQuery(req.Query) {
		radius := req.Radius
		if radius <= 0 {
			radius = defaultRadiusMeters
		}
		body.LocationBias = &upstreamLocationRestriction{
			Circle: upstreamCircle{
				Center: upstreamLocation{Latitude: req.Latitude, Longitude: req.Longitude},
				Radius: radius,
			},
		}
	}

	raw, err := c.post(ctx, "/v1/places:searchText", searchFieldMask, body)
	if err != nil {
		return SearchResponse{}, err
	}
	return decodeSearch(raw, req.Latitude, req.Longitude, hasCenter)
}

// Details proxies a Place Details lookup by place ID, forwarding the
// upstream object close to verbatim after field-mask filtering — the
// handler writes these bytes straight through rather than re-encoding
// them.
func (c *Client) Details(ctx context.Context, placeID string) ([]byte, error) {
	if !c.Enabled() {
		return nil, ErrAPIKeyMissing
	}
	path := fmt.Sprintf("/v1/places/%s?fields=%s", placeID, url.QueryEscape(detailsFieldMask))
	return c.get(ctx, path, "")
}

// Photo resolves a photo reference, follows exactly one 302 redirect to
// the image CDN, and returns the image bytes with the upstream
// Content-Type. A second redirect on the CDN response is not followed;
// whatever that response is gets returned as-is.
func (c *Client) Photo(ctx context.Context, photoRef string, maxWidthPx int) ([]byte, string, error) {
	if !c.Enabled() {
		return nil, "", ErrAPIKeyMissing
	}
	if maxWidthPx <= 0 {
		maxWidthPx = 400
	}

	firstURL := fmt.Sprintf("%s/v1/%s/media?maxWidthPx=%d&key=%s", c.baseURL, photoRef, maxWidthPx, c.apiKey)

	noRedirect := &http.Client{
		Timeout: c.httpClient.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	resp, err := doWithRetry(ctx, noRedirect, http.MethodGet, firstURL, nil)
	if err != nil {
		logger.Places().Error().Err(err).Msg("photo lookup failed")
		return nil, "", fmt.Errorf("places: photo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusFound || resp.StatusCode == http.StatusMovedPermanently {
		loc := resp.Header.Get("Location")
		if loc == "" {
			return nil, "", errors.New("places: redirect response missing Location header")
		}
		// Exactly one hop: the same no-redirect client is reused, so a
		// second redirect comes back as a response and is reported as-is.
		finalResp, err := doWithRetry(ctx, noRedirect, http.MethodGet, loc, nil)
		if err != nil {
			return nil, "", fmt.Errorf("places: photo media request: %w", err)
		}
		defer finalResp.Body.Close()

		if finalResp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(finalResp.Body)
			return nil, "", &UpstreamError{StatusCode: finalResp.StatusCode, Body: body}
		}
		data, err := io.ReadAll(finalResp.Body)
		if err != nil {
			return nil, "", fmt.Errorf("places: read photo body: %w", err)
		}
		return data, finalResp.Header.Get("Content-Type"), nil
	}

	body, _ := io.ReadAll(resp.Body)
	return nil, "", &UpstreamError{StatusCode: resp.StatusCode, Body: body}
}

func (c *Client) post(ctx context.Context, path, fieldMask string, body any) ([]byte, error) {
	if !c.Enabled() {
		return nil, ErrAPIKeyMissing
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("places: marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, fieldMask, payload)
}

func (c *Client) get(ctx context.Context, path, fieldMask string) ([]byte, error) {
	if !c.Enabled() {
		return nil, ErrAPIKeyMissing
	}
	return c.do(ctx, http.MethodGet, path, fieldMask, nil)
}

func (c *Client) do(ctx context.Context, method, path, fieldMask string, payload []byte) ([]byte, error) {
	reqURL := c.baseURL + path

	var raw []byte
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("places: build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Goog-Api-Key", c.apiKey)
		if fieldMask != "" {
			req.Header.Set("X-Goog-FieldMask", fieldMask)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if shouldRetry(err) && attempt < maxRetries {
				logger.Places().Warn().Err(err).Int("attempt", attempt).Msg("retrying upstream request")
				wait(attempt)
				continue
			}
			break
		}

		raw, lastErr = io.ReadAll(resp.Body)
		resp.Body.Close()
		if lastErr != nil {
			break
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			lastErr = &UpstreamError{StatusCode: resp.StatusCode, Body: raw}
		}
		break
	}

	if lastErr != nil {
		var upErr *UpstreamError
		if errors.As(lastErr, &upErr) {
			return nil, upErr
		}
		logger.Places().Error().Err(lastErr).Str("path", path).Msg("upstream request failed")
		return nil, fmt.Errorf("places: request failed: %w", lastErr)
	}
	return raw, nil
}

func doWithRetry(ctx context.Context, client *http.Client, method, rawURL string, body io.Reader) (*http.Response, error) {
	var resp *http.Response
	var err error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		var req *http.Request
		req, err = http.NewRequestWithContext(ctx, method, rawURL, body)
		if err != nil {
			return nil, err
		}
		resp, err = client.Do(req)
		if err == nil {
			return resp, nil
		}
		if !shouldRetry(err) || attempt == maxRetries {
			return nil, err
		}
		wait(attempt)
	}
	return nil, err
}

// shouldRetry reports whether err is transient and worth retrying —
// specifically EADDRNOTAVAIL, which shows up when outbound connections
// race local ephemeral port exhaustion.
func shouldRetry(err error) bool {
	return errors.Is(err, syscall.EADDRNOTAVAIL)
}

func wait(attempt int) {
	time.Sleep(retryBaseDelay * time.Duration(attempt))
}

const (
	searchFieldMask  = "places.id,places.name,places.displayName,places.formattedAddress,places.location"
	detailsFieldMask = "id,displayName,formattedAddress,location,rating,userRatingCount,reviews,photos"
)

func decodeSearch(raw []byte, centerLat, centerLng float64, hasCenter bool) (SearchResponse, error) {
	var upstream upstreamSearchResponse
	if err := json.Unmarshal(raw, &upstream); err != nil {
		return SearchResponse{}, fmt.Errorf("places: decode response: %w", err)
	}

	places := make([]Place, 0, len(upstream.Places))
	for _, p := range upstream.Places {
		places = append(places, toPlace(p))
	}

	if hasCenter {
		sortByDistance(places, centerLat, centerLng)
	}
	if len(places) > maxResults {
		places = places[:maxResults]
	}
	return SearchResponse{Places: places}, nil
}

func toPlace(p upstreamPlace) Place {
	id := p.ID
	if id == "" {
		id = idFromName(p.Name)
	}
	addr := p.FormattedAddress
	if addr == "" {
		addr = p.Vicinity
	}
	return Place{
		ID:   id,
		Name: p.DisplayName.Text,
		Addr: addr,
		Loc: PlaceLoc{
			Lat: round6(p.Location.Latitude),
			Lng: round6(p.Location.Longitude),
		},
	}
}

// idFromName extracts the trailing segment of a resource name of the form
// "places/ChIJ...", used as a fallback ID when the upstream place has none.
func idFromName(name string) string {
	const prefix = "places/"
	if idx := strings.LastIndex(name, prefix); idx >= 0 {
		return name[idx+len(prefix):]
	}
	return name
}

func sortByDistance(places []Place, lat, lng float64) {
	for i := 1; i < len(places); i++ {
		for j := i; j > 0 && distSq(places[j], lat, lng) < distSq(places[j-1], lat, lng); j-- {
			places[j], places[j-1] = places[j-1], places[j]
		}
	}
}

func distSq(p Place, lat, lng float64) float64 {
	dLat := p.Loc.Lat - lat
	dLng := p.Loc.Lng - lng
	return dLat*dLat + dLng*dLng
}

// round6 rounds to 6 decimal places, the precision used for every
// coordinate forwarded to clients.
func round6(v float64) float64 {
	const factor = 1e6
	return math.Round(v*factor) / factor
}
