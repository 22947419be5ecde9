package provider

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NERVsystems/greenroute/pkg/cache"
	"github.com/NERVsystems/greenroute/pkg/core"
	"github.com/NERVsystems/greenroute/pkg/gasprice"
)

const austinResponse = `{
  "type": "FeatureCollection",
  "query": ["austin"],
  "features": [{
    "id": "place.123",
    "type": "Feature",
    "place_type": ["place"],
    "relevance": 1,
    "text": "Austin",
    "place_name": "Austin, Texas, United States",
    "center": [-97.7431, 30.2672],
    "bbox": [-98.0, 30.0, -97.5, 30.5],
    "context": [
      {"id": "region.9", "text": "Texas", "short_code": "US-TX"},
      {"id": "country.4", "text": "United States", "short_code": "us"}
    ]
  }]
}`

const routeResponse = `{
  "code": "Ok",
  "routes": [{
    "distance": 5200.5,
    "duration": 1260,
    "geometry": {"type": "LineString", "coordinates": [[-97.7431, 30.2672], [-97.74, 30.28], [-97.73, 30.29]]},
    "legs": [{"summary": "Congress Avenue"}]
  }],
  "waypoints": []
}`

type mockProvider struct {
	server   *httptest.Server
	requests atomic.Int32
	lastPath atomic.Value
}

func newMockProvider(t *testing.T, handler http.HandlerFunc) *mockProvider {
	t.Helper()
	m := &mockProvider{}
	m.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.requests.Add(1)
		m.lastPath.Store(r.URL.Path)
		handler(w, r)
	}))
	t.Cleanup(m.server.Close)
	return m
}

func newTestClient(t *testing.T, baseURL string, opts ...Option) *Client {
	t.Helper()
	return NewClient(Config{BaseURL: baseURL, AccessToken: "test-token", Timeout: 5 * time.Second}, opts...)
}

func newCaches(t *testing.T, enabled bool) (*cache.ResponseCache[GeocodeResult], *cache.ResponseCache[Route]) {
	t.Helper()
	g, err := cache.New[GeocodeResult]("geocoding", cache.Config{TTL: time.Hour, Enabled: enabled})
	require.NoError(t, err)
	d, err := cache.New[Route]("directions", cache.Config{TTL: time.Minute, Enabled: enabled})
	require.NoError(t, err)
	t.Cleanup(g.Stop)
	t.Cleanup(d.Stop)
	return g, d
}

func TestGeocode(t *testing.T) {
	mock := newMockProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-token", r.URL.Query().Get("access_token"))
		assert.Equal(t, "3", r.URL.Query().Get("limit"))
		assert.Equal(t, "-97.7,30.3", r.URL.Query().Get("proximity"))
		assert.Equal(t, "place,address", r.URL.Query().Get("types"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		_, _ = io.WriteString(w, austinResponse)
	})
	client := newTestClient(t, mock.server.URL)

	result, err := client.Geocode(context.Background(), "Austin", GeocodeOptions{
		Limit:     3,
		Proximity: &core.Coordinate{Longitude: -97.7, Latitude: 30.3},
		Types:     []string{"place", "address"},
	})
	require.NoError(t, err)

	assert.Equal(t, "/geocoding/v5/mapbox.places/Austin.json", mock.lastPath.Load())
	require.Len(t, result.Places, 1)
	p := result.Places[0]
	assert.Equal(t, "Austin", p.Name)
	assert.Equal(t, core.Coordinate{Longitude: -97.7431, Latitude: 30.2672}, p.Center)
	assert.Equal(t, &[4]float64{-98.0, 30.0, -97.5, 30.5}, p.BBox)
	assert.Equal(t, &gasprice.LocationContext{Country: "US", Region: "Texas"}, p.Location)
	assert.False(t, result.Cached)
}

func TestGeocodeCacheHit(t *testing.T) {
	mock := newMockProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, austinResponse)
	})
	geo, _ := newCaches(t, true)
	client := newTestClient(t, mock.server.URL, WithGeocodingCache(geo))

	_, err := client.Geocode(context.Background(), "Austin", GeocodeOptions{Limit: 1})
	require.NoError(t, err)

	// same logical query, different spelling
	again, err := client.Geocode(context.Background(), "  AUSTIN ", GeocodeOptions{Limit: 1})
	require.NoError(t, err)

	assert.True(t, again.Cached)
	assert.Equal(t, int32(1), mock.requests.Load())
	assert.Equal(t, uint64(1), geo.Stats().Hits)

	// different options miss
	_, err = client.Geocode(context.Background(), "Austin", GeocodeOptions{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int32(2), mock.requests.Load())
}

func TestGeocodeCachedResultIsolated(t *testing.T) {
	mock := newMockProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, austinResponse)
	})
	geo, _ := newCaches(t, true)
	client := newTestClient(t, mock.server.URL, WithGeocodingCache(geo))

	first, err := client.Geocode(context.Background(), "Austin", GeocodeOptions{})
	require.NoError(t, err)
	first.Places[0].PlaceName = "changed"
	first.Places[0].Location.Region = "changed"

	second, err := client.Geocode(context.Background(), "Austin", GeocodeOptions{})
	require.NoError(t, err)
	require.True(t, second.Cached)
	assert.Equal(t, "Austin, Texas, United States", second.Places[0].PlaceName)
	assert.Equal(t, "Texas", second.Places[0].Location.Region)

	second.Places[0].PlaceType[0] = "changed"
	second.Places[0].BBox[0] = 0
	second.Places = append(second.Places[:0], Place{Name: "other"})

	third, err := client.Geocode(context.Background(), "Austin", GeocodeOptions{})
	require.NoError(t, err)
	require.Len(t, third.Places, 1)
	assert.Equal(t, []string{"place"}, third.Places[0].PlaceType)
	assert.Equal(t, -98.0, third.Places[0].BBox[0])
	assert.Equal(t, int32(1), mock.requests.Load())
}

func TestGeocodeCacheDisabled(t *testing.T) {
	mock := newMockProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, austinResponse)
	})
	geo, _ := newCaches(t, false)
	client := newTestClient(t, mock.server.URL, WithGeocodingCache(geo))

	for i := 0; i < 3; i++ {
		_, err := client.Geocode(context.Background(), "Austin", GeocodeOptions{})
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), mock.requests.Load())
}

func TestGeocodeErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode core.ErrorCode
	}{
		{"unauthorized", http.StatusUnauthorized, `{"message":"Not Authorized - Invalid Token"}`, core.ErrProviderRejected},
		{"server error", http.StatusInternalServerError, `oops`, core.ErrProviderUnavailable},
		{"rate limited", http.StatusTooManyRequests, `{"message":"Too Many Requests"}`, core.ErrProviderUnavailable},
		{"bad json", http.StatusOK, `{"type":`, core.ErrParseError},
		{"wrong type", http.StatusOK, `{"type":"Feature"}`, core.ErrParseError},
		{"bad center", http.StatusOK, `{"type":"FeatureCollection","features":[{"id":"place.1","center":[500,500]}]}`, core.ErrParseError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMockProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			geo, _ := newCaches(t, true)
			client := newTestClient(t, mock.server.URL, WithGeocodingCache(geo))

			_, err := client.Geocode(context.Background(), "Austin", GeocodeOptions{})
			require.Error(t, err)
			assert.True(t, core.HasCode(err, tt.wantCode), "got %v", err)
			assert.Equal(t, 0, geo.Len(), "failures must not be cached")
		})
	}
}

func TestGeocodeRejectedMessage(t *testing.T) {
	mock := newMockProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"message":"Not Authorized - Invalid Token"}`)
	})
	client := newTestClient(t, mock.server.URL)

	_, err := client.Geocode(context.Background(), "Austin", GeocodeOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid Token")
	assert.False(t, core.IsRetryable(err))
}

func TestGeocodeValidation(t *testing.T) {
	client := newTestClient(t, "http://127.0.0.1:0")

	_, err := client.Geocode(context.Background(), "  ", GeocodeOptions{})
	assert.True(t, core.HasCode(err, core.ErrValidation))

	_, err = client.Geocode(context.Background(), "x", GeocodeOptions{Limit: 50})
	assert.True(t, core.HasCode(err, core.ErrValidation))

	_, err = client.Geocode(context.Background(), "x", GeocodeOptions{Proximity: &core.Coordinate{Latitude: 100}})
	assert.True(t, core.HasCode(err, core.ErrValidation))
}

func TestProviderUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	var errorsSeen atomic.Int32
	client := newTestClient(t, url, WithMonitoringHooks(MonitoringHooks{
		OnError: func(service, errorType string) { errorsSeen.Add(1) },
	}))

	_, err := client.Directions(context.Background(),
		core.Coordinate{Longitude: -97.7, Latitude: 30.2},
		core.Coordinate{Longitude: -97.6, Latitude: 30.3}, ProfileCycling)
	require.Error(t, err)
	assert.True(t, core.HasCode(err, core.ErrProviderUnavailable))
	assert.True(t, core.IsRetryable(err))
	assert.Equal(t, int32(1), errorsSeen.Load())
}

type countingTransport struct {
	calls atomic.Int32
}

func (c *countingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	c.calls.Add(1)
	return http.DefaultTransport.RoundTrip(r)
}

func TestWithHTTPClient(t *testing.T) {
	mock := newMockProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, austinResponse)
	})
	rt := &countingTransport{}
	client := newTestClient(t, mock.server.URL, WithHTTPClient(&http.Client{Transport: rt, Timeout: time.Second}))

	_, err := client.Geocode(context.Background(), "Austin", GeocodeOptions{})
	require.NoError(t, err)
	assert.Equal(t, int32(1), rt.calls.Load())
}

func TestMissingTokenAgainstPublicAPI(t *testing.T) {
	client := NewClient(Config{})
	_, err := client.Geocode(context.Background(), "Austin", GeocodeOptions{})
	require.Error(t, err)
	assert.True(t, core.HasCode(err, core.ErrProviderRejected))
}

func TestReverseGeocodeAndLocationAt(t *testing.T) {
	mock := newMockProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/-97.7431,30.2672.json"), r.URL.Path)
		_, _ = io.WriteString(w, austinResponse)
	})
	geo, _ := newCaches(t, true)
	client := newTestClient(t, mock.server.URL, WithGeocodingCache(geo))

	at := core.Coordinate{Longitude: -97.7431, Latitude: 30.2672}
	loc, err := client.LocationAt(context.Background(), at)
	require.NoError(t, err)
	assert.Equal(t, &gasprice.LocationContext{Country: "US", Region: "Texas"}, loc)

	_, err = client.LocationAt(context.Background(), at)
	require.NoError(t, err)
	assert.Equal(t, int32(1), mock.requests.Load())
}

func TestMonitoringHooks(t *testing.T) {
	mock := newMockProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, routeResponse)
	})

	var requests, responses atomic.Int32
	var lastSuccess atomic.Bool
	client := newTestClient(t, mock.server.URL, WithMonitoringHooks(MonitoringHooks{
		OnRequest: func(service, operation string) {
			assert.Equal(t, "directions", service)
			assert.Equal(t, ProfileWalking, operation)
			requests.Add(1)
		},
		OnResponse: func(service, operation string, d time.Duration, success bool) {
			responses.Add(1)
			lastSuccess.Store(success)
		},
	}))

	_, err := client.Directions(context.Background(),
		core.Coordinate{Longitude: -97.7431, Latitude: 30.2672},
		core.Coordinate{Longitude: -97.73, Latitude: 30.29}, ProfileWalking)
	require.NoError(t, err)
	assert.Equal(t, int32(1), requests.Load())
	assert.Equal(t, int32(1), responses.Load())
	assert.True(t, lastSuccess.Load())
}

func TestCheckHealth(t *testing.T) {
	healthy := newMockProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"type":"FeatureCollection","features":[]}`)
	})
	assert.NoError(t, newTestClient(t, healthy.server.URL).CheckHealth(context.Background()))

	broken := newMockProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	assert.Error(t, newTestClient(t, broken.server.URL).CheckHealth(context.Background()))
}
