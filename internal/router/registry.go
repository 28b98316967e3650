// Package router keeps a small registry of the status endpoints the
// crawler exposes alongside its worker pool, so startup can print one
// table of everything that's wired instead of scattering HandleFunc
// calls through the app.
package router

import (
	"fmt"
	"net/http"

	"github.com/pterm/pterm"
	"github.com/zaxtyson/spidercrawl/internal/logger"
)

// RouteInfo describes one registered endpoint.
type RouteInfo struct {
	Path        string
	Handler     http.HandlerFunc
	Description string
	Method      string
}

// RouteRegistry accumulates routes in registration order.
type RouteRegistry struct {
	routes []RouteInfo
	logger *logger.StyledLogger
}

func NewRouteRegistry(logger *logger.StyledLogger) *RouteRegistry {
	return &RouteRegistry{logger: logger}
}

// Register wires a GET endpoint.
func (r *RouteRegistry) Register(path string, handler http.HandlerFunc, description string) {
	r.RegisterWithMethod(path, handler, description, "GET")
}

// RegisterWithMethod records the route; a later registration of the
// same path replaces the earlier one.
func (r *RouteRegistry) RegisterWithMethod(path string, handler http.HandlerFunc, description, method string) {
	for i := range r.routes {
		if r.routes[i].Path == path {
			r.routes[i] = RouteInfo{Path: path, Handler: handler, Description: description, Method: method}
			return
		}
	}
	r.routes = append(r.routes, RouteInfo{
		Path:        path,
		Handler:     handler,
		Description: description,
		Method:      method,
	})
}

// WireUp attaches every registered route to mux and logs the table.
func (r *RouteRegistry) WireUp(mux *http.ServeMux) {
	for _, info := range r.routes {
		mux.HandleFunc(info.Path, info.Handler)
	}
	r.logRoutesTable()
}

// GetRoutes returns the registered routes in registration order.
func (r *RouteRegistry) GetRoutes() []RouteInfo {
	return r.routes
}

func (r *RouteRegistry) logRoutesTable() {
	if len(r.routes) == 0 {
		return
	}

	tableData := [][]string{{"ROUTE", "METHOD", "DESCRIPTION"}}
	for _, info := range r.routes {
		tableData = append(tableData, []string{info.Path, info.Method, info.Description})
	}

	r.logger.InfoWithCount("Registered web routes", len(r.routes))
	tableString, _ := pterm.DefaultTable.WithHasHeader().WithData(tableData).Srender()
	fmt.Print(tableString)
}
