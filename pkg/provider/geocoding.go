package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/NERVsystems/greenroute/pkg/cache"
	"github.com/NERVsystems/greenroute/pkg/core"
	"github.com/NERVsystems/greenroute/pkg/gasprice"
	"github.com/NERVsystems/greenroute/pkg/tracing"
)

// MaxGeocodeLimit is the largest result count the provider accepts.
const MaxGeocodeLimit = 10

// GeocodeOptions narrow a forward geocoding query. Zero values are omitted.
type GeocodeOptions struct {
	Limit     int              `json:"limit,omitempty"`
	Proximity *core.Coordinate `json:"proximity,omitempty"`
	BBox      *[4]float64      `json:"bbox,omitempty"`
	Types     []string         `json:"types,omitempty"`
}

// Validate checks option ranges.
func (o GeocodeOptions) Validate() error {
	if o.Limit < 0 || o.Limit > MaxGeocodeLimit {
		return core.NewValidationError("limit", fmt.Sprintf("limit must be between 1 and %d", MaxGeocodeLimit))
	}
	if o.Proximity != nil {
		if err := o.Proximity.Validate(); err != nil {
			return core.AsError(err).WithField("proximity")
		}
	}
	return nil
}

func (o GeocodeOptions) keyParams() cache.GeocodeParams {
	return cache.GeocodeParams{Limit: o.Limit, Proximity: o.Proximity, BBox: o.BBox, Types: o.Types}
}

// Place is a single geocoding match.
type Place struct {
	ID        string                    `json:"id"`
	Name      string                    `json:"name"`
	PlaceName string                    `json:"placeName"`
	PlaceType []string                  `json:"placeType,omitempty"`
	Relevance float64                   `json:"relevance"`
	Center    core.Coordinate           `json:"center"`
	BBox      *[4]float64               `json:"bbox,omitempty"`
	Location  *gasprice.LocationContext `json:"location,omitempty"`
}

// GeocodeResult is the validated response of a geocoding call.
type GeocodeResult struct {
	Query  string  `json:"query"`
	Places []Place `json:"places"`
	Cached bool    `json:"cached"`
}

// clone copies r deeply so cached entries never share memory with callers.
func (r *GeocodeResult) clone() *GeocodeResult {
	out := *r
	if r.Places != nil {
		out.Places = make([]Place, len(r.Places))
		for i, p := range r.Places {
			if p.PlaceType != nil {
				p.PlaceType = append([]string(nil), p.PlaceType...)
			}
			if p.BBox != nil {
				b := *p.BBox
				p.BBox = &b
			}
			if p.Location != nil {
				loc := *p.Location
				p.Location = &loc
			}
			out.Places[i] = p
		}
	}
	return &out
}

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

type feature struct {
	ID         string    `json:"id"`
	PlaceType  []string  `json:"place_type"`
	Relevance  float64   `json:"relevance"`
	Text       string    `json:"text"`
	PlaceName  string    `json:"place_name"`
	Center     []float64 `json:"center"`
	BBox       []float64 `json:"bbox"`
	Properties struct {
		ShortCode string `json:"short_code"`
	} `json:"properties"`
	Context []gasprice.ContextItem `json:"context"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func errorMessage(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return ""
	}
	return eb.Message
}

// decodeGeocodeResponse validates a FeatureCollection payload.
func decodeGeocodeResponse(query string, body []byte) (*GeocodeResult, error) {
	var fc featureCollection
	if err := json.Unmarshal(body, &fc); err != nil {
		return nil, core.NewError(core.ErrParseError, "geocoding response is not valid JSON").WithCause(err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, core.NewError(core.ErrParseError, fmt.Sprintf("unexpected geocoding response type %q", fc.Type))
	}

	result := &GeocodeResult{Query: query, Places: make([]Place, 0, len(fc.Features))}
	for i, f := range fc.Features {
		if len(f.Center) != 2 {
			return nil, core.NewError(core.ErrParseError, fmt.Sprintf("feature %d has no center", i))
		}
		center := core.Coordinate{Longitude: f.Center[0], Latitude: f.Center[1]}
		if err := center.Validate(); err != nil {
			return nil, core.NewError(core.ErrParseError, fmt.Sprintf("feature %d has an invalid center", i)).WithCause(err)
		}

		p := Place{
			ID:        f.ID,
			Name:      f.Text,
			PlaceName: f.PlaceName,
			PlaceType: f.PlaceType,
			Relevance: f.Relevance,
			Center:    center,
		}
		if len(f.BBox) == 4 {
			p.BBox = &[4]float64{f.BBox[0], f.BBox[1], f.BBox[2], f.BBox[3]}
		}

		// the feature itself may be the country or region
		items := append([]gasprice.ContextItem{{ID: f.ID, Text: f.Text, ShortCode: f.Properties.ShortCode}}, f.Context...)
		p.Location = gasprice.ParseLocationContext(items)

		result.Places = append(result.Places, p)
	}
	return result, nil
}

// Geocode resolves free text to places.
func (c *Client) Geocode(ctx context.Context, query string, opts GeocodeOptions) (*GeocodeResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, core.NewValidationError("query", "query must not be empty")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	ctx, span := tracing.StartSpan(ctx, "provider.geocode",
		trace.WithAttributes(
			attribute.String(tracing.AttrProviderService, tracing.ServiceGeocoding),
			attribute.String(tracing.AttrProviderOperation, "forward"),
		))
	defer span.End()

	key, keyErr := cache.GeocodingKey(query, opts.keyParams())
	if keyErr != nil {
		c.logger.Debug("geocoding cache key unavailable", "error", keyErr)
	}
	if cached, ok := c.lookupGeocode(ctx, key, keyErr); ok {
		return cached, nil
	}

	if err := c.requireToken(); err != nil {
		return nil, err
	}

	q := url.Values{}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Proximity != nil {
		q.Set("proximity", opts.Proximity.String())
	}
	if opts.BBox != nil {
		parts := make([]string, 4)
		for i, v := range opts.BBox {
			parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		q.Set("bbox", strings.Join(parts, ","))
	}
	if len(opts.Types) > 0 {
		q.Set("types", strings.Join(opts.Types, ","))
	}

	rawURL := c.endpoint("/geocoding/v5/mapbox.places/"+url.PathEscape(query)+".json", q)
	result, err := c.fetchGeocode(ctx, "forward", query, rawURL)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}

	if keyErr == nil && c.geocodeCache != nil {
		c.geocodeCache.Set(key, *result.clone())
	}
	return result, nil
}

// ReverseGeocode resolves a coordinate to the places containing it.
func (c *Client) ReverseGeocode(ctx context.Context, at core.Coordinate) (*GeocodeResult, error) {
	if err := at.Validate(); err != nil {
		return nil, err
	}

	ctx, span := tracing.StartSpan(ctx, "provider.reverse_geocode",
		trace.WithAttributes(
			attribute.String(tracing.AttrProviderService, tracing.ServiceGeocoding),
			attribute.String(tracing.AttrProviderOperation, "reverse"),
		))
	defer span.End()

	key, keyErr := cache.ReverseGeocodingKey(at)
	if cached, ok := c.lookupGeocode(ctx, key, keyErr); ok {
		return cached, nil
	}

	if err := c.requireToken(); err != nil {
		return nil, err
	}

	rawURL := c.endpoint("/geocoding/v5/mapbox.places/"+at.String()+".json", nil)
	result, err := c.fetchGeocode(ctx, "reverse", at.String(), rawURL)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}

	if keyErr == nil && c.geocodeCache != nil {
		c.geocodeCache.Set(key, *result.clone())
	}
	return result, nil
}

// LocationAt returns the pricing context for a coordinate, or nil when the
// provider cannot place it in a country.
func (c *Client) LocationAt(ctx context.Context, at core.Coordinate) (*gasprice.LocationContext, error) {
	result, err := c.ReverseGeocode(ctx, at)
	if err != nil {
		return nil, err
	}
	for _, p := range result.Places {
		if p.Location != nil {
			return p.Location, nil
		}
	}
	return nil, nil
}

func (c *Client) lookupGeocode(ctx context.Context, key string, keyErr error) (*GeocodeResult, bool) {
	if keyErr != nil || c.geocodeCache == nil {
		return nil, false
	}
	v, ok := c.geocodeCache.Get(key)
	tracing.SetAttributes(ctx, tracing.CacheAttributes(c.geocodeCache.Name(), ok)...)
	if !ok {
		return nil, false
	}
	hit := v.clone()
	hit.Cached = true
	return hit, true
}

func (c *Client) fetchGeocode(ctx context.Context, operation, query, rawURL string) (*GeocodeResult, error) {
	body, status, err := c.get(ctx, tracing.ServiceGeocoding, operation, rawURL)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, rejected(tracing.ServiceGeocoding, status, body)
	}

	result, err := decodeGeocodeResponse(query, body)
	if err != nil {
		c.logger.Warn("invalid geocoding response", "operation", operation, "error", err)
		return nil, err
	}

	c.logger.Debug("geocoded", "operation", operation, "results", len(result.Places))
	return result, nil
}
