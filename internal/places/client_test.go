package places

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	c := NewClient("test-key")
	c.baseURL = srv.URL
	return c, srv
}

func TestClient_NearbySearch_TransformsAndRounds(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/places:searchNearby", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Goog-Api-Key"))

		resp := upstreamSearchResponse{Places: []upstreamPlace{
			{
				ID:               "X",
				DisplayName:      upstreamDisplayName{Text: "Cafe"},
				FormattedAddress: "Addr",
				Location:         upstreamLocation{Latitude: 37.498095, Longitude: 127.027610},
			},
		}}
		_ = json.NewEncoder(w).Encode(resp)
	})
	defer srv.Close()

	out, err := c.NearbySearch(context.Background(), NearbySearchRequest{
		Latitude: 37.4979, Longitude: 127.0276, Radius: 500,
	})
	require.NoError(t, err)
	require.Len(t, out.Places, 1)

	p := out.Places[0]
	assert.Equal(t, "X", p.ID)
	assert.Equal(t, "Cafe", p.Name)
	assert.Equal(t, "Addr", p.Addr)
	assert.Equal(t, 37.498095, p.Loc.Lat)
	assert.Equal(t, 127.02761, p.Loc.Lng)
}

func TestClient_NearbySearch_AppliesDefaultRadius(t *testing.T) {
	var seenRadius float64
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body upstreamNearbyRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		seenRadius = body.LocationRestriction.Circle.Radius
		_ = json.NewEncoder(w).Encode(upstreamSearchResponse{})
	})
	defer srv.Close()

	_, err := c.NearbySearch(context.Background(), NearbySearchRequest{Latitude: 1, Longitude: 2})
	require.NoError(t, err)
	assert.Equal(t, float64(defaultRadiusMeters), seenRadius)
}

func TestClient_NearbySearch_CapsAndSortsByDistance(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var places []upstreamPlace
		// Place farther away listed first; expect the nearer one to sort ahead.
		for i := 6; i >= 0; i-- {
			places = append(places, upstreamPlace{
				ID:       string(rune('A' + i)),
				Location: upstreamLocation{Latitude: float64(i), Longitude: float64(i)},
			})
		}
		_ = json.NewEncoder(w).Encode(upstreamSearchResponse{Places: places})
	})
	defer srv.Close()

	out, err := c.NearbySearch(context.Background(), NearbySearchRequest{Latitude: 0, Longitude: 0})
	require.NoError(t, err)
	require.Len(t, out.Places, maxResults)
	assert.Equal(t, "A", out.Places[0].ID)
	assert.Equal(t, "B", out.Places[1].ID)
}

func TestClient_TextSearch_LandmarkOmitsLocationBias(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body upstreamTextRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		assert.Nil(t, body.LocationBias)
		_ = json.NewEncoder(w).Encode(upstreamSearchResponse{})
	})
	defer srv.Close()

	_, err := c.TextSearch(context.Background(), TextSearchRequest{
		Query: "Seoul Station", Latitude: 37.5, Longitude: 127.0,
	})
	require.NoError(t, err)
}

func TestClient_TextSearch_NonLandmarkAppliesLocationBias(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body upstreamTextRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		require.NotNil(t, body.LocationBias)
		_ = json.NewEncoder(w).Encode(upstreamSearchResponse{})
	})
	defer srv.Close()

	_, err := c.TextSearch(context.Background(), TextSearchRequest{
		Query: "coffee shop", Latitude: 37.5, Longitude: 127.0,
	})
	require.NoError(t, err)
}

func TestClient_NearbySearch_UpstreamErrorForwardedVerbatim(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"denied"}`))
	})
	defer srv.Close()

	_, err := c.NearbySearch(context.Background(), NearbySearchRequest{Latitude: 1, Longitude: 2})
	require.Error(t, err)

	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, http.StatusForbidden, upErr.StatusCode)
	assert.JSONEq(t, `{"error":"denied"}`, string(upErr.Body))
}

func TestClient_DisabledWithoutAPIKey(t *testing.T) {
	c := NewClient("")
	assert.False(t, c.Enabled())

	_, err := c.NearbySearch(context.Background(), NearbySearchRequest{Latitude: 1, Longitude: 2})
	assert.ErrorIs(t, err, ErrAPIKeyMissing)
}

func TestClient_Photo_FollowsExactlyOneRedirect(t *testing.T) {
	var hops int
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hops++
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("fake-image-bytes"))
	})
	defer srv.Close()

	// Point the "first" URL at a tiny redirect server that bounces once to srv.
	redirector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srv.URL+"/media", http.StatusFound)
	}))
	defer redirector.Close()

	c.baseURL = redirector.URL
	data, contentType, err := c.Photo(context.Background(), "places/abc/photos/xyz", 400)
	require.NoError(t, err)
	assert.Equal(t, "fake-image-bytes", string(data))
	assert.Equal(t, "image/jpeg", contentType)
	assert.Equal(t, 1, hops)
}

func TestClient_Photo_DoesNotFollowSecondRedirect(t *testing.T) {
	second := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "https://example.invalid/still-not-an-image", http.StatusFound)
	}))
	defer second.Close()

	redirector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, second.URL, http.StatusFound)
	}))
	defer redirector.Close()

	c := NewClient("test-key")
	c.baseURL = redirector.URL

	_, _, err := c.Photo(context.Background(), "places/abc/photos/xyz", 400)
	require.Error(t, err)

	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, http.StatusFound, upErr.StatusCode)
}

func TestClient_Details_ForwardsRawBody(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/places/place42", r.URL.Path)
		assert.NotEmpty(t, r.URL.Query().Get("fields"))
		_, _ = w.Write([]byte(`{"id":"place42","displayName":{"text":"Gyeongbokgung Palace"}}`))
	})
	defer srv.Close()

	body, err := c.Details(context.Background(), "place42")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"place42","displayName":{"text":"Gyeongbokgung Palace"}}`, string(body))
}

func TestIsLandmarkQuery(t *testing.T) {
	assert.True(t, isLandmarkQuery("Seoul Station"))
	assert.True(t, isLandmarkQuery("Incheon Airport"))
	assert.True(t, isLandmarkQuery("서울역"))
	assert.False(t, isLandmarkQuery("starbucks gangnam"))
}

func TestIDFromName(t *testing.T) {
	assert.Equal(t, "ChIJ123", idFromName("places/ChIJ123"))
	assert.Equal(t, "bare-id", idFromName("bare-id"))
}
