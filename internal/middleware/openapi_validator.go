package middleware

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
)

// OpenAPIValidatorConfig holds configuration for OpenAPI validation middleware
type OpenAPIValidatorConfig struct {
	// Enabled controls whether validation is active
	Enabled bool
	// SpecPath is the path to the OpenAPI specification file
	SpecPath string
	// ValidateResponses logs responses that do not match the document
	ValidateResponses bool
	// SkipPaths are exact paths, or prefixes when they end in "/", that are
	// never validated
	SkipPaths []string
}

// NewOpenAPIValidatorConfig returns the configuration used by the API server
func NewOpenAPIValidatorConfig(specPath string, enabled bool) *OpenAPIValidatorConfig {
	return &OpenAPIValidatorConfig{
		Enabled:  enabled,
		SpecPath: specPath,
		SkipPaths: []string{
			"/health",
			"/health/ready",
			"/metrics",
		},
	}
}

// LoadOpenAPIRouter loads and validates the document at path
func LoadOpenAPIRouter(path string) (routers.Router, error) {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true

	doc, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI spec: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI spec: %w", err)
	}
	// Requests are matched on path only; the servers list is for clients.
	doc.Servers = nil

	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenAPI router: %w", err)
	}
	return router, nil
}

// OpenAPIValidator rejects requests that do not match the OpenAPI document.
// A document that cannot be loaded disables validation instead of failing
// every request.
func OpenAPIValidator(config *OpenAPIValidatorConfig) func(next http.Handler) http.Handler {
	noop := func(next http.Handler) http.Handler { return next }

	if config == nil || !config.Enabled {
		slog.Info("OpenAPI validation disabled")
		return noop
	}

	router, err := LoadOpenAPIRouter(config.SpecPath)
	if err != nil {
		slog.Error("OpenAPI validation disabled",
			slog.String("path", config.SpecPath),
			slog.String("error", err.Error()))
		return noop
	}

	slog.Info("OpenAPI validation enabled",
		slog.Bool("validate_responses", config.ValidateResponses),
		slog.String("spec_path", config.SpecPath))

	options := &openapi3filter.Options{
		AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
		MultiError:         false,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if shouldSkipPath(r.URL.Path, config.SkipPaths) || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			route, pathParams, err := router.FindRoute(r)
			if err != nil {
				// Unknown routes are left to the router's 404/405 handling
				next.ServeHTTP(w, r)
				return
			}

			input := &openapi3filter.RequestValidationInput{
				Request:    r,
				PathParams: pathParams,
				Route:      route,
				Options:    options,
			}

			// ValidateRequest consumes the body; keep a copy for the handler.
			var body []byte
			if r.Body != nil {
				body, err = io.ReadAll(r.Body)
				if err != nil {
					writeError(w, http.StatusBadRequest, "Unable to read request body")
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))
			}

			if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
				slog.Warn("request validation failed",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()))
				writeError(w, http.StatusBadRequest, "Request validation failed: "+firstLine(err.Error()))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			if !config.ValidateResponses {
				next.ServeHTTP(w, r)
				return
			}

			recorder := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(recorder, r)

			responseInput := &openapi3filter.ResponseValidationInput{
				RequestValidationInput: input,
				Status:                 recorder.statusCode,
				Header:                 recorder.Header(),
				Body:                   io.NopCloser(bytes.NewReader(recorder.body)),
				Options:                options,
			}
			if err := openapi3filter.ValidateResponse(r.Context(), responseInput); err != nil {
				// The response is already on the wire
				slog.Warn("response validation failed",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int("status", recorder.statusCode),
					slog.String("error", err.Error()))
			}
		})
	}
}

func shouldSkipPath(path string, skipPaths []string) bool {
	for _, skipPath := range skipPaths {
		if path == skipPath {
			return true
		}
		if strings.HasSuffix(skipPath, "/") && skipPath != "/" && strings.HasPrefix(path, skipPath) {
			return true
		}
	}
	return false
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// responseRecorder wraps http.ResponseWriter to capture response data
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       []byte
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body = append(r.body, b...)
	return r.ResponseWriter.Write(b)
}
