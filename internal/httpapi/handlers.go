package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cherryrecorder/edge-server/internal/apperror"
	"github.com/cherryrecorder/edge-server/internal/places"
)

type handlers struct {
	places *places.Client
}

func (h *handlers) health(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

func (h *handlers) status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// mapsKey returns the configured upstream API key as plain text, for
// clients (e.g. a map SDK embed) that need it directly. 400 if
// unconfigured.
func (h *handlers) mapsKey(c *gin.Context) {
	if !h.places.Enabled() {
		apperror.Abort(c, apperror.BadRequest("Places API key not configured"))
		return
	}
	c.String(http.StatusOK, h.places.APIKey())
}

func (h *handlers) nearbySearch(c *gin.Context) {
	var req places.NearbySearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperror.Abort(c, apperror.BadRequest("invalid request body: "+err.Error()))
		return
	}

	resp, err := h.places.NearbySearch(c.Request.Context(), req)
	h.writeSearchResult(c, resp, err)
}

func (h *handlers) textSearch(c *gin.Context) {
	var req places.TextSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperror.Abort(c, apperror.BadRequest("invalid request body: "+err.Error()))
		return
	}

	resp, err := h.places.TextSearch(c.Request.Context(), req)
	h.writeSearchResult(c, resp, err)
}

func (h *handlers) writeSearchResult(c *gin.Context, resp places.SearchResponse, err error) {
	if err == nil {
		c.JSON(http.StatusOK, resp)
		return
	}
	h.writeUpstreamError(c, err)
}

func (h *handlers) details(c *gin.Context) {
	id := strings.TrimPrefix(c.Param("id"), "/")
	if id == "" {
		apperror.Abort(c, apperror.BadRequest("place id is required"))
		return
	}

	body, err := h.places.Details(c.Request.Context(), id)
	if err != nil {
		h.writeUpstreamError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", body)
}

func (h *handlers) photo(c *gin.Context) {
	ref := strings.TrimPrefix(c.Param("ref"), "/")
	if ref == "" {
		apperror.Abort(c, apperror.BadRequest("photo reference is required"))
		return
	}

	data, contentType, err := h.places.Photo(c.Request.Context(), ref, 0)
	if err != nil {
		h.writeUpstreamError(c, err)
		return
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Data(http.StatusOK, contentType, data)
}

// writeUpstreamError maps a places.Client error onto this core's error
// taxonomy: a missing API key is a 400; a captured non-2xx upstream
// response is forwarded unchanged; anything else (connect/TLS/read
// failure) is a 5xx.
func (h *handlers) writeUpstreamError(c *gin.Context, err error) {
	if errors.Is(err, places.ErrAPIKeyMissing) {
		apperror.Abort(c, apperror.BadRequest("Places API key not configured"))
		return
	}

	var upErr *places.UpstreamError
	if errors.As(err, &upErr) {
		c.Data(upErr.StatusCode, "application/json", upErr.Body)
		return
	}

	apperror.Abort(c, apperror.UpstreamUnavailable(err))
}
