package handlers

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-hangar/pkg/auth"
	"github.com/ekaya-inc/ekaya-hangar/pkg/catalog"
	"github.com/ekaya-inc/ekaya-hangar/pkg/models"
	"github.com/ekaya-inc/ekaya-hangar/pkg/services"
)

// Catalog is the read side of the query catalog the handlers serve.
type Catalog interface {
	Endpoint(url string) (*models.Endpoint, error)
	View(url string) (*models.PrebuiltView, error)
}

// VariablesResponse is the JSON body of the form route.
type VariablesResponse struct {
	Variables []string `json:"variables"`
}

// EndpointHandler serves endpoints, their parameter forms and prebuilt views.
type EndpointHandler struct {
	catalog     Catalog
	endpointSvc services.EndpointService
	renderer    *Renderer
	logger      *zap.Logger
}

// NewEndpointHandler creates a new endpoint handler.
func NewEndpointHandler(cat Catalog, endpointSvc services.EndpointService, renderer *Renderer, logger *zap.Logger) *EndpointHandler {
	return &EndpointHandler{
		catalog:     cat,
		endpointSvc: endpointSvc,
		renderer:    renderer,
		logger:      logger,
	}
}

// RegisterRoutes registers the endpoint routes. Every route accepts
// anonymous callers; group checks happen per endpoint.
func (h *EndpointHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("GET /form/{format}/{url...}", authMiddleware.OptionalAuth(h.Form))
	mux.HandleFunc("GET /json/{url...}", authMiddleware.OptionalAuth(h.JSON))
	mux.HandleFunc("GET /html/{url...}", authMiddleware.OptionalAuth(h.HTML))
	mux.HandleFunc("GET /view/{url...}", authMiddleware.OptionalAuth(h.View))
}

// Form handles GET /form/{format}/{url...}
// Lists the tagged variables an endpoint accepts, as JSON or as an HTML form.
func (h *EndpointHandler) Form(w http.ResponseWriter, r *http.Request) {
	format := r.PathValue("format")
	if format != catalog.ResponseJSON && format != catalog.ResponseHTML {
		if err := ErrorResponse(w, http.StatusNotFound, "not_found", fmt.Sprintf("Unknown format %q", format)); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	endpoint, ok := h.loadEndpoint(w, r)
	if !ok {
		return
	}

	variables, err := h.endpointSvc.Variables(endpoint)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	if format == catalog.ResponseHTML {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := h.renderer.RenderForm(w, NewFormPage(endpoint, variables)); err != nil {
			writeServiceError(w, h.logger, err)
		}
		return
	}

	h.writeJSON(w, r, VariablesResponse{Variables: variables})
}

// JSON handles GET /json/{url...}
func (h *EndpointHandler) JSON(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, catalog.ResponseJSON)
}

// HTML handles GET /html/{url...}
func (h *EndpointHandler) HTML(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, catalog.ResponseHTML)
}

func (h *EndpointHandler) run(w http.ResponseWriter, r *http.Request, responseType string) {
	endpoint, ok := h.loadEndpoint(w, r)
	if !ok {
		return
	}

	params, ok := ParseRequestParams(w, r, h.logger)
	if !ok {
		return
	}

	result, err := h.endpointSvc.Run(r.Context(), endpoint, params)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	h.respond(w, r, responseType, "", endpoint, result)
}

// View handles GET /view/{url...}
// Runs the view's endpoint with the view's stored params. Request query
// params other than the response selectors are ignored.
func (h *EndpointHandler) View(w http.ResponseWriter, r *http.Request) {
	url, ok := ParseEndpointURL(w, r, h.logger)
	if !ok {
		return
	}

	view, err := h.catalog.View(url)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if !h.authorize(w, r, view.RequiredGroups, view.Endpoint.RequiredGroups) {
		return
	}

	result, err := h.endpointSvc.Run(r.Context(), view.Endpoint, view.Params)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	h.respond(w, r, view.ResponseType, view.Template, view.Endpoint, result)
}

func (h *EndpointHandler) loadEndpoint(w http.ResponseWriter, r *http.Request) (*models.Endpoint, bool) {
	url, ok := ParseEndpointURL(w, r, h.logger)
	if !ok {
		return nil, false
	}

	endpoint, err := h.catalog.Endpoint(url)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return nil, false
	}
	if !h.authorize(w, r, endpoint.RequiredGroups) {
		return nil, false
	}
	return endpoint, true
}

// authorize checks the caller's groups against every required set.
// Anonymous callers of a protected resource get 401, members missing a
// group get 403.
func (h *EndpointHandler) authorize(w http.ResponseWriter, r *http.Request, required ...[]string) bool {
	groups := auth.GetGroupsFromContext(r.Context())
	for _, groupSet := range required {
		if len(groupSet) == 0 {
			continue
		}
		if !auth.IsAuthenticated(r.Context()) {
			if err := ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return false
		}
		if err := services.CheckPermission(groupSet, groups); err != nil {
			h.logger.Info("Permission denied",
				zap.String("path", r.URL.Path),
				zap.String("user_id", auth.GetUserIDFromContext(r.Context())),
				zap.Error(err))
			writeServiceError(w, h.logger, err)
			return false
		}
	}
	return true
}

// respond writes result in the requested format. For HTML, ?template=
// overrides defaultTemplate.
func (h *EndpointHandler) respond(w http.ResponseWriter, r *http.Request, responseType, defaultTemplate string, endpoint *models.Endpoint, result *services.EndpointResult) {
	if responseType != catalog.ResponseHTML {
		h.writeJSON(w, r, result)
		return
	}

	name := r.URL.Query().Get("template")
	if name == "" {
		name = defaultTemplate
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.renderer.RenderResults(w, name, NewResultsPage(endpoint, result)); err != nil {
		writeServiceError(w, h.logger, err)
	}
}

func (h *EndpointHandler) writeJSON(w http.ResponseWriter, r *http.Request, data any) {
	callback, ok := ParseJSONPCallback(w, r, h.logger)
	if !ok {
		return
	}
	if err := WriteIndentedJSON(w, callback, data); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
