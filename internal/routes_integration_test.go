package internal

import (
	"os"
	"reflect"
	"runtime"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge/testsupport"
	"github.com/stretchr/testify/require"

	"linkpulse/internal/config"
)

func TestMain(m *testing.M) {
	os.Setenv("LINKPULSE_ENV", "test")
	config.Reset()
	os.Exit(m.Run())
}

func TestAssociationRoutesRegistered(t *testing.T) {
	srv := testsupport.NewTestServer(t, testsupport.TestServerOptions{
		RouteMountFunc: MountAppRoutes,
	})
	routes := srv.App.GetRoutes(true)

	expected := []struct {
		method string
		path   string
	}{
		{fiber.MethodGet, "/_health"},
		{fiber.MethodGet, "/metrics"},
		{fiber.MethodGet, "/api/v1/links"},
		{fiber.MethodPost, "/api/v1/links"},
		{fiber.MethodGet, "/api/v1/links/:id/series"},
		{fiber.MethodGet, "/api/v1/links/:id/associations"},
		{fiber.MethodPost, "/api/v1/links/:id/recalculate"},
		{fiber.MethodGet, "/api/v1/events"},
		{fiber.MethodPost, "/api/v1/events"},
		{fiber.MethodDelete, "/api/v1/events/:id"},
		{fiber.MethodGet, "/api/v1/events/:id/associations"},
		{fiber.MethodPost, "/api/v1/events/:id/links/:linkId"},
		{fiber.MethodDelete, "/api/v1/events/:id/links/:linkId"},
		{fiber.MethodGet, "/api/v1/settings"},
		{fiber.MethodPost, "/api/v1/settings"},
	}

	registered := make(map[string]bool)
	for _, route := range routes {
		registered[route.Method+" "+route.Path] = true
	}

	for _, want := range expected {
		require.Truef(t, registered[want.method+" "+want.path],
			"expected route %s %s to be registered", want.method, want.path)
	}
}

func TestWriteRoutesRateLimited(t *testing.T) {
	srv := testsupport.NewTestServer(t, testsupport.TestServerOptions{
		RouteMountFunc: MountAppRoutes,
	})
	routes := srv.App.GetRoutes(true)

	var createRoute *fiber.Route
	for idx := range routes {
		route := routes[idx]
		if route.Method == fiber.MethodPost && route.Path == "/api/v1/events" {
			createRoute = &routes[idx]
			break
		}
	}

	require.NotNil(t, createRoute, "expected event create route to be registered")

	// The rate limiter is wrapped in a conditional function that only applies
	// in production. In test environment, it passes through but the wrapper
	// still exists. Check for the conditional wrapper (defined in MountAppRoutes).
	hasRateLimiter := false
	var handlerNames []string
	for _, handler := range createRoute.Handlers {
		name := runtime.FuncForPC(reflect.ValueOf(handler).Pointer()).Name()
		handlerNames = append(handlerNames, name)
		if strings.Contains(name, "middleware/limiter") || strings.Contains(name, "MountAppRoutes.func") {
			hasRateLimiter = true
			break
		}
	}

	require.Truef(t, hasRateLimiter, "expected rate limiter middleware for event create route, handlers: %v", handlerNames)
}
