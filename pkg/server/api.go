package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/NERVsystems/greenroute/pkg/cache"
	"github.com/NERVsystems/greenroute/pkg/coords"
	"github.com/NERVsystems/greenroute/pkg/core"
	"github.com/NERVsystems/greenroute/pkg/emissions"
	"github.com/NERVsystems/greenroute/pkg/gasprice"
	"github.com/NERVsystems/greenroute/pkg/monitoring"
	"github.com/NERVsystems/greenroute/pkg/planner"
	"github.com/NERVsystems/greenroute/pkg/provider"
	"github.com/NERVsystems/greenroute/pkg/tools"
	"github.com/NERVsystems/greenroute/pkg/tracing"
)

// Response is the envelope of every REST API response.
type Response struct {
	Success   bool        `json:"success"`
	Data      any         `json:"data,omitempty"`
	Error     *core.Error `json:"error,omitempty"`
	RequestID string      `json:"requestId,omitempty"`
}

func requestID(c *gin.Context) string {
	if id := RequestIDFromContext(c.Request.Context()); id != "" {
		return id
	}
	return c.Writer.Header().Get(RequestIDHeader)
}

func respond(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data, RequestID: requestID(c)})
}

func abortWithError(c *gin.Context, err error) {
	e := core.AsError(err)
	c.AbortWithStatusJSON(e.HTTPStatus(), Response{Success: false, Error: e, RequestID: requestID(c)})
}

// CacheAdmin is the management surface of a response cache.
type CacheAdmin interface {
	Stats() cache.Stats
	Clear()
}

// API serves the REST endpoints.
type API struct {
	calc      *emissions.Calculator
	geocoder  tools.Geocoder
	routes    planner.RouteSource
	planner   tools.RoutePlanner
	caches    []CacheAdmin
	toolNames []string
	logger    *slog.Logger
}

// NewAPI creates the REST API over deps. Endpoints backed by a nil
// dependency are not registered.
func NewAPI(deps tools.Deps, caches []CacheAdmin, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	registerJSONFieldNames()
	registry := tools.NewRegistry(deps, logger)
	if deps.Calculator == nil {
		deps.Calculator = emissions.NewCalculator(nil, emissions.WithLogger(logger))
	}
	return &API{
		calc:      deps.Calculator,
		geocoder:  deps.Geocoder,
		routes:    deps.Routes,
		planner:   deps.Planner,
		caches:    caches,
		toolNames: registry.GetToolNames(),
		logger:    logger.With("component", "api"),
	}
}

// RegisterRoutes mounts the endpoints on rg.
func (a *API) RegisterRoutes(rg gin.IRoutes) {
	rg.GET("/version", a.handleVersion)
	rg.POST("/metrics", a.handleMetrics)
	rg.POST("/compare", a.handleCompare)
	rg.GET("/recommendations", a.handleRecommendations)
	rg.GET("/gas-price", a.handleGasPrice)
	rg.GET("/cache/stats", a.handleCacheStats)
	rg.DELETE("/cache", a.handleCacheClear)

	if a.geocoder != nil {
		rg.GET("/geocode", a.handleGeocode)
		rg.GET("/reverse-geocode", a.handleReverseGeocode)
	}
	if a.routes != nil {
		rg.GET("/directions", a.handleDirections)
	}
	if a.planner != nil {
		rg.POST("/routes/compare", a.handleCompareRoutes)
	}
}

var fieldNamesOnce sync.Once

// registerJSONFieldNames makes validation errors report the json name of a field.
func registerJSONFieldNames() {
	fieldNamesOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
				if name != "" && name != "-" {
					return name
				}
			}
			return f.Name
		})
	})
}

// bindError translates gin binding failures into VALIDATION_ERROR.
func bindError(err error) *core.Error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return core.NewValidationError(fe.Field(), validationMessage(fe))
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return core.NewValidationError(typeErr.Field, fmt.Sprintf("%s must be of type %s", typeErr.Field, typeErr.Type))
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return core.NewValidationError("body", fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit))
	}
	var numErr *strconv.NumError
	if errors.As(err, &numErr) {
		return core.NewValidationError("query", fmt.Sprintf("%q is not a number", numErr.Num))
	}
	return core.NewValidationError("body", "request must be valid JSON")
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "gte", "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "lte", "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

func (a *API) handleVersion(c *gin.Context) {
	respond(c, tools.NewVersionInfo(a.toolNames))
}

type metricsBody struct {
	Distance *float64             `json:"distance" binding:"required,gte=0"`
	Mode     string               `json:"mode" binding:"required"`
	Duration *float64             `json:"duration" binding:"omitempty,gte=0"`
	Location *tools.LocationInput `json:"location"`
}

func locationContext(in *tools.LocationInput) *gasprice.LocationContext {
	if in == nil {
		return nil
	}
	return in.Context()
}

func (a *API) handleMetrics(c *gin.Context) {
	var body metricsBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortWithError(c, bindError(err))
		return
	}
	mode, err := emissions.ParseMode(body.Mode)
	if err != nil {
		abortWithError(c, err)
		return
	}

	metrics, err := a.calc.CalculateMetrics(emissions.MetricsRequest{
		Distance: *body.Distance,
		Mode:     mode,
		Duration: body.Duration,
		Location: locationContext(body.Location),
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	monitoring.RecordMetricsCalculation(string(mode), string(metrics.EnvironmentalRating), metrics.CarbonEmissions)
	tracing.SetAttributes(c.Request.Context(), tracing.MetricsAttributes(string(mode), metrics.Details.DistanceKm, string(metrics.EnvironmentalRating))...)
	respond(c, metrics)
}

type compareBody struct {
	Distance *float64             `json:"distance" binding:"required,gte=0"`
	Modes    []string             `json:"modes"`
	Location *tools.LocationInput `json:"location"`
}

func (a *API) handleCompare(c *gin.Context) {
	var body compareBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortWithError(c, bindError(err))
		return
	}
	modes, err := tools.ParseModes(body.Modes)
	if err != nil {
		abortWithError(c, err)
		return
	}
	comparison, err := a.calc.CompareModes(emissions.CompareRequest{
		Distance: *body.Distance,
		Modes:    modes,
		Location: locationContext(body.Location),
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	for _, m := range comparison.Modes {
		monitoring.RecordMetricsCalculation(string(m.Mode), string(m.EnvironmentalRating), m.CarbonEmissions)
	}
	respond(c, comparison)
}

type recommendationsQuery struct {
	DistanceKm *float64 `form:"distanceKm" binding:"required,gte=0"`
}

func (a *API) handleRecommendations(c *gin.Context) {
	var q recommendationsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		abortWithError(c, bindError(err))
		return
	}
	if math.IsInf(*q.DistanceKm, 0) {
		abortWithError(c, core.NewValidationError("distanceKm", "distanceKm must be finite"))
		return
	}
	respond(c, emissions.GetRecommendations(*q.DistanceKm))
}

func (a *API) handleGasPrice(c *gin.Context) {
	loc := tools.LocationInput{
		Country: c.Query("country"),
		Region:  c.Query("region"),
	}
	if strings.TrimSpace(loc.Country) == "" && strings.TrimSpace(loc.Region) != "" {
		abortWithError(c, core.NewValidationError("country", "country is required when region is given"))
		return
	}
	respond(c, tools.LookupGasPrice(a.calc.Prices(), loc.Context()))
}

type geocodeQuery struct {
	Query     string `form:"q" binding:"required"`
	Limit     int    `form:"limit" binding:"omitempty,min=1,max=10"`
	Proximity string `form:"proximity"`
	BBox      string `form:"bbox"`
	Types     string `form:"types"`
}

func (q geocodeQuery) options() (provider.GeocodeOptions, error) {
	opts := provider.GeocodeOptions{Limit: q.Limit}
	if q.Proximity != "" {
		p, err := core.ParseCoordinate("proximity", q.Proximity)
		if err != nil {
			return opts, err
		}
		opts.Proximity = &p
	}
	if q.BBox != "" {
		bbox, err := core.ParseBBox(q.BBox)
		if err != nil {
			return opts, err
		}
		opts.BBox = &bbox
	}
	for _, t := range strings.Split(q.Types, ",") {
		if t = strings.TrimSpace(t); t != "" {
			opts.Types = append(opts.Types, t)
		}
	}
	return opts, nil
}

func (a *API) handleGeocode(c *gin.Context) {
	var q geocodeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		abortWithError(c, bindError(err))
		return
	}
	if strings.TrimSpace(q.Query) == "" {
		abortWithError(c, core.NewValidationError("q", "q must not be empty"))
		return
	}
	opts, err := q.options()
	if err != nil {
		abortWithError(c, err)
		return
	}

	result, err := a.geocoder.Geocode(c.Request.Context(), q.Query, opts)
	if err != nil {
		a.logger.Warn("geocode failed", "request_id", requestID(c), "error", err)
		abortWithError(c, err)
		return
	}
	respond(c, result)
}

func (a *API) handleReverseGeocode(c *gin.Context) {
	at, err := coords.Parse("at", c.Query("at"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	result, err := a.geocoder.ReverseGeocode(c.Request.Context(), at)
	if err != nil {
		a.logger.Warn("reverse geocode failed", "request_id", requestID(c), "error", err)
		abortWithError(c, err)
		return
	}
	respond(c, result)
}

type directionsQuery struct {
	Start   string `form:"start" binding:"required"`
	End     string `form:"end" binding:"required"`
	Profile string `form:"profile" binding:"omitempty,oneof=walking cycling driving driving-traffic"`
}

func (a *API) handleDirections(c *gin.Context) {
	var q directionsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		abortWithError(c, bindError(err))
		return
	}
	start, err := coords.Parse("start", q.Start)
	if err != nil {
		abortWithError(c, err)
		return
	}
	end, err := coords.Parse("end", q.End)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if q.Profile == "" {
		q.Profile = provider.ProfileDriving
	}

	route, err := a.routes.Directions(c.Request.Context(), start, end, q.Profile)
	if err != nil {
		abortWithError(c, err)
		return
	}
	respond(c, route)
}

type compareRoutesBody struct {
	From     *core.Coordinate     `json:"from" binding:"required"`
	To       *core.Coordinate     `json:"to" binding:"required"`
	Modes    []string             `json:"modes"`
	Location *tools.LocationInput `json:"location"`
}

func (a *API) handleCompareRoutes(c *gin.Context) {
	var body compareRoutesBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortWithError(c, bindError(err))
		return
	}
	modes, err := tools.ParseModesOrAll(body.Modes)
	if err != nil {
		abortWithError(c, err)
		return
	}
	location := locationContext(body.Location)

	comparison, err := a.planner.CompareRoutes(c.Request.Context(), planner.Request{
		From:            *body.From,
		To:              *body.To,
		Modes:           modes,
		Location:        location,
		ResolveLocation: location == nil,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	for _, m := range comparison.Routes {
		monitoring.RecordMetricsCalculation(string(m.Mode), string(m.EnvironmentalRating), m.CarbonEmissions)
	}
	respond(c, comparison)
}

func (a *API) handleCacheStats(c *gin.Context) {
	stats := make([]cache.Stats, 0, len(a.caches))
	for _, rc := range a.caches {
		stats = append(stats, rc.Stats())
	}
	respond(c, gin.H{"caches": stats})
}

func (a *API) handleCacheClear(c *gin.Context) {
	names := make([]string, 0, len(a.caches))
	for _, rc := range a.caches {
		rc.Clear()
		names = append(names, rc.Stats().Name)
	}
	a.logger.Info("caches cleared", "request_id", requestID(c), "caches", names)
	respond(c, gin.H{"cleared": names})
}
