package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cherryrecorder/edge-server/internal/places"
)

func TestRouter_Health(t *testing.T) {
	r := Router(places.NewClient(""))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_Status(t *testing.T) {
	r := Router(places.NewClient(""))

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRouter_MapsKey_Unconfigured(t *testing.T) {
	r := Router(places.NewClient(""))

	req := httptest.NewRequest(http.MethodGet, "/maps/key", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assertSingleJSONObject(t, rec.Body.Bytes())
}

func TestRouter_MapsKey_Configured(t *testing.T) {
	r := Router(places.NewClient("secret-key"))

	req := httptest.NewRequest(http.MethodGet, "/maps/key", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "secret-key", rec.Body.String())
}

func TestRouter_UnknownRoute404(t *testing.T) {
	r := Router(places.NewClient(""))

	req := httptest.NewRequest(http.MethodGet, "/nonexistent", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assertSingleJSONObject(t, rec.Body.Bytes())
}

func TestRouter_OptionsPreflight(t *testing.T) {
	r := Router(places.NewClient(""))

	req := httptest.NewRequest(http.MethodOptions, "/places/nearby", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "GET, POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
}

func TestRouter_DetailsEmptyIDIs400NotRoute(t *testing.T) {
	r := Router(places.NewClient("key"))

	req := httptest.NewRequest(http.MethodGet, "/places/details/", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assertSingleJSONObject(t, rec.Body.Bytes())
}

func TestRouter_NearbySearch_MalformedBodyIs400(t *testing.T) {
	r := Router(places.NewClient("key"))

	req := httptest.NewRequest(http.MethodPost, "/places/nearby", bytes.NewBufferString(`{not json`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assertSingleJSONObject(t, rec.Body.Bytes())
}

func TestRouter_NearbySearch_NoAPIKeyIs400(t *testing.T) {
	r := Router(places.NewClient(""))

	body, err := json.Marshal(places.NearbySearchRequest{Latitude: 1, Longitude: 2})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/places/nearby", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assertSingleJSONObject(t, rec.Body.Bytes())
}

func TestRouter_RequestTooLarge(t *testing.T) {
	r := Router(places.NewClient("key"))

	big := bytes.Repeat([]byte("a"), int(2*1024*1024))
	req := httptest.NewRequest(http.MethodPost, "/places/search", bytes.NewReader(big))
	req.ContentLength = int64(len(big))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assertSingleJSONObject(t, rec.Body.Bytes())
}

// assertSingleJSONObject fails if body is not exactly one well-formed JSON
// object — catches a handler that writes its error response twice (e.g. an
// Abort call and the apperror.Handler middleware both writing to the same
// ResponseWriter), which corrupts the body into two concatenated documents.
func assertSingleJSONObject(t *testing.T, body []byte) {
	t.Helper()
	var v map[string]any
	dec := json.NewDecoder(bytes.NewReader(body))
	require.NoError(t, dec.Decode(&v))
	require.False(t, dec.More(), "response body contains more than one JSON value (double write?): %s", body)
}
