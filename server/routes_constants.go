package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// APIPrefix is prepended to every API route; clients use it as their base URL path.
	APIPrefix = "/api/v1"

	// Auth Routes
	RouteAuthLogin   = APIPrefix + "/auth/login"
	RouteAuthRefresh = APIPrefix + "/auth/refresh"
	RouteAuthLogout  = APIPrefix + "/auth/logout"

	// Admin Routes
	RouteAdminUsers      = APIPrefix + "/admin/users"
	RouteAdminUser       = APIPrefix + "/admin/users/{id}"
	RouteAdminCollection = APIPrefix + "/admin/{resource}"
	RouteAdminRecord     = APIPrefix + "/admin/{resource}/{id}"
	RouteAdminByUniv     = APIPrefix + "/admin/universities/{id}/{resource}"

	// Preflight for every API route
	RouteAPIPreflight = APIPrefix + "/"

	RouteMetrics = "/metrics"
)

// CatalogResources are the admin collections served from the in-memory catalog.
var CatalogResources = []string{"universities", "faculties", "professors", "semesters"}
