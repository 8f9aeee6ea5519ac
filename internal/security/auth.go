package security

import (
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
)

const (
	// ContextKeyTenantID is the gin context key for the resolved tenant id.
	ContextKeyTenantID = "tenantID"
	// ContextKeyNamespace is the gin context key for the X-Namespace header.
	ContextKeyNamespace = "namespace"
)

// DefaultNamespace is used when a request carries no X-Namespace header.
const DefaultNamespace = "default"

// TenantResolver maps a bearer token or API key to a tenant id. The admin
// database holding the actual user/API-key records is an external
// collaborator: this resolver only needs the lookup function, not its
// storage.
//
// This is not an OIDC-backed resolver: JWT verification, role hierarchy
// (admin/auditor/indexer), and an external IdP have no counterpart here,
// where tenants authenticate by bearer token or a flat API-key header
// rather than by a role-bearing identity token.
type TenantResolver struct {
	apiKeys map[string]string // X-API-Key value -> tenant id
}

// NewTenantResolver builds a TenantResolver from a static API-key map,
// e.g. loaded from config or the admin database at startup.
func NewTenantResolver(apiKeys map[string]string) *TenantResolver {
	return &TenantResolver{apiKeys: apiKeys}
}

// Resolve maps a bearer token and/or API key to a tenant id. An API key
// takes precedence; otherwise the bearer token is used directly as the
// tenant id, matching the original's lighter-weight single-header auth.
func (r *TenantResolver) Resolve(bearerToken, apiKey string) (string, bool) {
	if key := strings.TrimSpace(apiKey); key != "" {
		if tenantID, ok := r.apiKeys[key]; ok {
			return tenantID, true
		}
		return "", false
	}
	if token := strings.TrimSpace(bearerToken); token != "" {
		return token, true
	}
	return "", false
}

// GetTenantID returns the authenticated tenant id from the gin context.
func GetTenantID(c *gin.Context) string {
	return c.GetString(ContextKeyTenantID)
}

// GetNamespace returns the request's namespace, defaulting to "default".
func GetNamespace(c *gin.Context) string {
	if ns := c.GetString(ContextKeyNamespace); ns != "" {
		return ns
	}
	return DefaultNamespace
}

// AuthMiddleware resolves the caller's tenant id from Authorization /
// X-API-Key and the namespace from X-Namespace, rejecting the request
// with 401 if neither header identifies a tenant.
func AuthMiddleware(resolver *TenantResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		bearer := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		tenantID, ok := resolver.Resolve(bearer, c.GetHeader("X-API-Key"))
		if !ok {
			log.Info("auth rejected", "method", c.Request.Method, "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "missing or invalid credentials"})
			return
		}

		namespace := strings.TrimSpace(c.GetHeader("X-Namespace"))
		if namespace == "" {
			namespace = DefaultNamespace
		}

		c.Set(ContextKeyTenantID, tenantID)
		c.Set(ContextKeyNamespace, namespace)
		c.Next()
	}
}
