package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"engagement-platform/internal/auth"

	"github.com/gin-gonic/gin"
)

func serve(t *testing.T, userID, clientID, role string, mws ...gin.HandlerFunc) int {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	handlers := append([]gin.HandlerFunc{func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), userID, clientID, role)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}}, mws...)
	handlers = append(handlers, func(c *gin.Context) { c.Status(200) })
	r.GET("/x", handlers...)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	return w.Code
}

func TestRequireAnyRole_AgencyAdminBypasses(t *testing.T) {
	code := serve(t, "u", "client-1", RoleAgencyAdmin, RequireClient(), RequireAnyRole(RoleOwner))
	if code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireAnyRole_DisallowedRoleForbidden(t *testing.T) {
	code := serve(t, "u", "client-1", RoleTeamMember, RequireClient(), RequireAnyRole(RoleOwner))
	if code != 403 {
		t.Fatalf("expected 403, got %d", code)
	}
}

func TestRequireAnyRole_AllowedRolePasses(t *testing.T) {
	code := serve(t, "u", "client-1", RoleTeamMember, RequireClient(), RequireAnyRole(RoleOwner, RoleTeamMember))
	if code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireClient_MissingClientUnauthorized(t *testing.T) {
	code := serve(t, "u", "", RoleOwner, RequireClient(), RequireAnyRole(RoleOwner))
	if code != 401 {
		t.Fatalf("expected 401, got %d", code)
	}
}
