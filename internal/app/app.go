package app

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jun/gophdocs/backend/internal/config"
	"github.com/jun/gophdocs/backend/internal/editlock"
	"github.com/jun/gophdocs/backend/internal/handler"
	"github.com/jun/gophdocs/backend/internal/obs"
	"github.com/jun/gophdocs/backend/internal/view"
)

type handlerFunc func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)

// route maps a method and a path pattern such as "/docs/{id}/lock" to a handler.
type route struct {
	method  string
	pattern string
	query   string // required query parameter, if any
	handle  handlerFunc
}

// App holds the dependencies for the Lambda function.
type App struct {
	cfg              config.Config
	logger           *slog.Logger
	metrics          *obs.Metrics
	registry         *prometheus.Registry
	locks            *editlock.Service
	sweeper          *editlock.Sweeper
	editLockHandler  *handler.EditLockHandler
	routes           []route
	apiGatewaySecret string
	closers          []func() error
}

// NewApp initializes the application dependencies from cfg.
func NewApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	deps, err := buildDeps(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return New(cfg, logger, deps), nil
}

// New assembles an App from already built dependencies.
func New(cfg config.Config, logger *slog.Logger, deps Deps) *App {
	if logger == nil {
		logger = obs.NopLogger()
	}
	registry := deps.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	metrics := obs.NewMetrics(registry)

	locks := editlock.NewService(deps.Locks, deps.Docs, cfg.LockWindow,
		editlock.WithLogger(logger),
		editlock.WithMetrics(metrics),
	)
	presenter := view.NewPresenter(cfg.BaseURL, deps.Docs, deps.Directory, deps.Nonces, logger)

	app := &App{
		cfg:              cfg,
		logger:           logger,
		metrics:          metrics,
		registry:         registry,
		locks:            locks,
		editLockHandler:  handler.NewEditLockHandler(locks, presenter, deps.Nonces, deps.JWTSecret, logger),
		apiGatewaySecret: deps.APIGatewaySecret,
		closers:          deps.Closers,
	}

	// Stores without native expiry need the sweeper.
	if purger, ok := deps.Locks.(editlock.Purger); ok {
		app.sweeper = editlock.NewSweeper(purger, locks.Window(), cfg.SweepInterval, logger, metrics)
	}

	app.routes = []route{
		{method: http.MethodPost, pattern: "/heartbeat", handle: app.editLockHandler.Heartbeat},
		{method: http.MethodPost, pattern: "/remove_edit_lock", handle: app.editLockHandler.RemoveEditLock},
		{method: http.MethodGet, pattern: "/docs/{id}/lock", handle: app.editLockHandler.LockStatus},
		{method: http.MethodGet, pattern: "/docs/{id}", query: view.ActionParam, handle: app.editLockHandler.DocAction},
	}
	return app
}

// Registry returns the Prometheus registry holding the app's collectors.
func (app *App) Registry() *prometheus.Registry {
	return app.registry
}

// Sweeper returns the stale lock sweeper, or nil when the lock store expires
// locks by itself.
func (app *App) Sweeper() *editlock.Sweeper {
	return app.sweeper
}

// Close releases store connections.
func (app *App) Close() error {
	var errs []error
	for _, c := range app.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// HandleRequest routes API Gateway requests to the appropriate handler.
func (app *App) HandleRequest(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	start := time.Now()
	requestID := requestIDFor(req)
	logger := app.logger.With("request_id", requestID)

	resp := app.route(ctx, req, logger)
	if resp.Headers == nil {
		resp.Headers = make(map[string]string)
	}
	resp.Headers["X-Request-Id"] = requestID

	logger.InfoContext(ctx, "request",
		"method", req.HTTPMethod,
		"path", req.Path,
		"status", resp.StatusCode,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return app.corsResponse(resp), nil
}

func (app *App) route(ctx context.Context, req events.APIGatewayProxyRequest, logger *slog.Logger) events.APIGatewayProxyResponse {
	method := req.HTTPMethod

	// CORS Preflight
	if method == http.MethodOptions {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusNoContent}
	}

	// Strip /api prefix if present (for CloudFront proxying)
	path := req.Path
	if path == "/api" || strings.HasPrefix(path, "/api/") {
		path = strings.TrimPrefix(path, "/api")
	}

	if path == "/healthz" && method == http.MethodGet {
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusOK,
			Headers:    map[string]string{"Content-Type": "application/json"},
			Body:       `{"status":"ok"}`,
		}
	}

	// Verify Request Origin (CloudFront only) outside DEV_MODE
	if !app.cfg.DevMode && !app.originVerified(req) {
		logger.WarnContext(ctx, "missing or invalid X-Origin-Verify header", "path", path)
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusForbidden,
			Body:       "Forbidden: Access denied",
		}
	}

	for _, rt := range app.routes {
		if rt.method != method {
			continue
		}
		params, ok := matchPath(rt.pattern, path)
		if !ok {
			continue
		}
		if rt.query != "" && req.QueryStringParameters[rt.query] == "" {
			continue
		}

		if req.PathParameters == nil {
			req.PathParameters = make(map[string]string)
		}
		for k, v := range params {
			req.PathParameters[k] = v
		}
		return app.must(rt.handle(ctx, req))
	}

	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusNotFound,
		Body:       fmt.Sprintf("Not Found: %s %s", method, path),
	}
}

func (app *App) originVerified(req events.APIGatewayProxyRequest) bool {
	if app.apiGatewaySecret == "" {
		return false
	}
	for k, v := range req.Headers {
		if strings.EqualFold(k, "X-Origin-Verify") {
			return subtle.ConstantTimeCompare([]byte(v), []byte(app.apiGatewaySecret)) == 1
		}
	}
	return false
}

// matchPath matches path against a pattern with {name} segments. Segment
// values are unescaped after splitting, so an encoded "/" stays inside one
// parameter.
func matchPath(pattern, path string) (map[string]string, bool) {
	pp := strings.Split(strings.Trim(pattern, "/"), "/")
	sp := strings.Split(strings.Trim(path, "/"), "/")
	if len(pp) != len(sp) {
		return nil, false
	}

	params := make(map[string]string)
	for i, seg := range pp {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			if sp[i] == "" {
				return nil, false
			}
			v, err := url.PathUnescape(sp[i])
			if err != nil {
				return nil, false
			}
			params[seg[1:len(seg)-1]] = v
			continue
		}
		if seg != sp[i] {
			return nil, false
		}
	}
	return params, true
}

func requestIDFor(req events.APIGatewayProxyRequest) string {
	for k, v := range req.Headers {
		if strings.EqualFold(k, "X-Request-Id") && v != "" {
			return v
		}
	}
	if req.RequestContext.RequestID != "" {
		return req.RequestContext.RequestID
	}
	return uuid.NewString()
}

// corsResponse adds CORS headers to an API Gateway response.
func (app *App) corsResponse(resp events.APIGatewayProxyResponse) events.APIGatewayProxyResponse {
	if resp.Headers == nil {
		resp.Headers = make(map[string]string)
	}
	resp.Headers["Access-Control-Allow-Origin"] = app.cfg.FrontendURL
	resp.Headers["Access-Control-Allow-Credentials"] = "true"
	resp.Headers["Access-Control-Allow-Methods"] = "GET,POST,OPTIONS"
	resp.Headers["Access-Control-Allow-Headers"] = "Content-Type,Authorization,X-Request-Id"
	return resp
}

// must unwraps a handler response, logging the error.
func (app *App) must(resp events.APIGatewayProxyResponse, err error) events.APIGatewayProxyResponse {
	if err != nil {
		app.logger.Error("handler error", "error", err)
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError, Body: "Internal Server Error"}
	}
	return resp
}
