package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/abdosalm555/visit-pass/internal/handler"
	"github.com/abdosalm555/visit-pass/internal/middleware"
	"github.com/abdosalm555/visit-pass/internal/model"
)

// RegisterRoutes registers routes that require no authentication: the
// health check used by load balancers and the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterAuth registers the login endpoint and the authenticated /v1/me
// probe.  Login exchanges provisioned credentials for a role JWT; account
// registration itself happens outside this service.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	e.POST("/v1/auth/login", a.Login)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole(model.RoleHost, model.RoleSecurity, model.RoleAdmin))
	auth.GET("/me", a.Me)
}

// RegisterVisits registers the visit lifecycle endpoints.
//
// Three caller classes, three middleware stacks:
//   - hosts issue authorizations (JWT, role HOST/ADMIN);
//   - visitors redeem with the token itself (Show for polling the
//     countdown, SubmitIdentity for the gate), rate limited since they
//     are unauthenticated and pollable;
//   - security confirms entry (JWT, role SECURITY/ADMIN).
func RegisterVisits(e *echo.Echo, v *handler.VisitHandler, jwtSecret string, rl echo.MiddlewareFunc) {
	host := e.Group("/v1/visits")
	host.Use(middleware.JWTAuth(jwtSecret))
	host.Use(middleware.RequireRole(model.RoleHost, model.RoleAdmin))
	host.POST("", v.Issue)

	public := e.Group("/v1/visits")
	if rl != nil {
		public.Use(rl)
	}
	public.GET("/:token", v.Show)
	public.POST("/:token/identity", v.SubmitIdentity)

	security := e.Group("/v1/visits")
	security.Use(middleware.JWTAuth(jwtSecret))
	security.Use(middleware.RequireRole(model.RoleSecurity, model.RoleAdmin))
	security.POST("/:token/confirm", v.Confirm)
}
