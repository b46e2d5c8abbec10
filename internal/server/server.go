// Package server exposes the negotiation Engine over HTTP: submit demand,
// inspect the live catalog, push configuration, and look up a past run.
// There is no authentication middleware here — per the negotiation
// engine's scope, authn/authz is explicitly out of bounds.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"negotiator/internal/audit"
	"negotiator/internal/engine"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   *engine.Engine
	BasePath string
}

type apiErrorBody struct {
	Code    string `json:"code" example:"bad_request"`
	Message string `json:"message" example:"demand is required"`
}

// apiError models the error envelope every non-2xx response carries.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

func newAPIError(status int, code, message string) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{status: status, Body: apiErrorBody{Code: code, Message: message}}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	default:
		return "internal_error"
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	if errors.Is(err, audit.ErrRunNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error())
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", err.Error())
}

// New returns an HTTP handler exposing the negotiation API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		return newAPIError(status, "", msg)
	}

	router := chi.NewRouter()
	hcfg := huma.DefaultConfig("Negotiation Engine API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerDemand(group, cfg.Engine)
	registerCatalog(group, cfg.Engine)
	registerConfig(group, cfg.Engine)
	registerRuns(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			spec, _ = json.Marshal(api.OpenAPI())
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return `<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Negotiation Engine API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({ url: '` + specURL + `', dom_id: '#swagger-ui' });
      };
    </script>
  </body>
</html>`
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerDemand(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "submit-demand",
		Method:        http.MethodPost,
		Path:          "/demand",
		Summary:       "Negotiate a demand vector against the seller pool",
		DefaultStatus: http.StatusOK,
		Errors:        []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body SubmitDemandRequest `json:"body"`
	}) (*struct {
		Body RunResponse `json:"body"`
	}, error) {
		if strings.TrimSpace(input.Body.Demand) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "demand is required")
		}
		runID, result, err := e.Run(ctx, input.Body.Demand)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RunResponse `json:"body"`
		}{Body: runResponse(runID, result)}, nil
	})
}

func registerCatalog(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-catalog",
		Method:      http.MethodGet,
		Path:        "/catalog",
		Summary:     "List the bundles every seller currently offers",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body CatalogResponse `json:"body"`
	}, error) {
		sellers, err := e.Catalog(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CatalogResponse `json:"body"`
		}{Body: catalogResponse(sellers)}, nil
	})
}

func registerConfig(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "apply-config",
		Method:        http.MethodPut,
		Path:          "/config",
		Summary:       "Merge a configuration document onto the running configuration",
		DefaultStatus: http.StatusOK,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body ApplyConfigRequest `json:"body"`
	}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		if err := e.Config.ApplyDocument(input.Body); err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error())
		}
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "applied"}}, nil
	})
}

func registerRuns(api huma.API, e *engine.Engine) {
	type runPath struct {
		RunID string `path:"id"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "get-run",
		Method:      http.MethodGet,
		Path:        "/runs/{id}",
		Summary:     "Look up a past run's audit record",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *runPath) (*struct {
		Body RunRecordResponse `json:"body"`
	}, error) {
		rec, err := e.GetRun(ctx, input.RunID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RunRecordResponse `json:"body"`
		}{Body: runRecordResponse(rec)}, nil
	})
}
