package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) initRoutes() {
	// AUTH
	s.RegisterRouteHandler("POST "+RouteAuthLogin, ChainMiddleware(s.LoginHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthRefresh, ChainMiddleware(s.RefreshHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware()...))

	// ADMIN: users live in the user repo, everything else in the catalog
	admin := s.APIMiddleware(s.RequireAuth(), s.RequireAdminScope(s.config.GetAdminScope()))
	s.RegisterRouteHandler("GET "+RouteAdminUsers, ChainMiddleware(s.AdminUsersListHandler(), admin...))
	s.RegisterRouteHandler("POST "+RouteAdminUsers, ChainMiddleware(s.AdminUserCreateHandler(), admin...))
	s.RegisterRouteHandler("PUT "+RouteAdminUser, ChainMiddleware(s.AdminUserUpdateHandler(), admin...))
	s.RegisterRouteHandler("DELETE "+RouteAdminUser, ChainMiddleware(s.AdminUserDeleteHandler(), admin...))

	s.RegisterRouteHandler("GET "+RouteAdminCollection, ChainMiddleware(s.CatalogListHandler(), admin...))
	s.RegisterRouteHandler("POST "+RouteAdminCollection, ChainMiddleware(s.CatalogCreateHandler(), admin...))
	s.RegisterRouteHandler("GET "+RouteAdminByUniv, ChainMiddleware(s.CatalogByUniversityHandler(), admin...))
	s.RegisterRouteHandler("PUT "+RouteAdminRecord, ChainMiddleware(s.CatalogUpdateHandler(), admin...))
	s.RegisterRouteHandler("DELETE "+RouteAdminRecord, ChainMiddleware(s.CatalogDeleteHandler(), admin...))

	s.RegisterRouteHandler("OPTIONS "+RouteAPIPreflight, ChainMiddleware(func(w http.ResponseWriter, r *http.Request) {}, s.APIMiddleware()...))

	s.RegisterRouteHandler("GET "+RouteMetrics, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
}
