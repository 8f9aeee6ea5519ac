// Package tenant implements lazy per-tenant Store/SessionStore creation,
// quota enforcement, and tier-gated feature flags, grounded on
// original_source/server/{tiers,api}.py.
package tenant

// Limits is the per-tier quota and feature-flag table, grounded on
// original_source/server/tiers.py's TierLimits. Links, Sessions, AutoSave
// and SynapseProxy extend the original's three flags (SemanticSearch,
// Websocket, Analytics).
type Limits struct {
	Name               string
	MaxMemories        int // 0 = unlimited
	MaxStorageMB       int
	MaxNamespaces      int // 0 = unlimited
	RequestsPerSecond  int
	RequestsPerMonth   int // 0 = unlimited
	RetentionDays      int // 0 = unlimited
	SemanticSearch     bool
	Websocket          bool
	Analytics          bool
	Links              bool
	Sessions           bool
	AutoSave           bool
	SynapseProxy       bool
	Webhooks           int // max webhook endpoints, 0 = none
	MaxAPIKeys         int
	CustomEmbeddings   bool
}

var (
	Free = Limits{
		Name: "free", MaxMemories: 5_000, MaxStorageMB: 50, MaxNamespaces: 2,
		RequestsPerSecond: 5, RequestsPerMonth: 50_000, RetentionDays: 90,
		SemanticSearch: false, Websocket: false, Analytics: false,
		Links: true, Sessions: false, AutoSave: false, SynapseProxy: false,
		Webhooks: 0, MaxAPIKeys: 2, CustomEmbeddings: false,
	}

	Pro = Limits{
		Name: "pro", MaxMemories: 250_000, MaxStorageMB: 5_000, MaxNamespaces: 25,
		RequestsPerSecond: 50, RequestsPerMonth: 5_000_000, RetentionDays: 365,
		SemanticSearch: true, Websocket: true, Analytics: true,
		Links: true, Sessions: true, AutoSave: true, SynapseProxy: false,
		Webhooks: 10, MaxAPIKeys: 25, CustomEmbeddings: false,
	}

	Enterprise = Limits{
		Name: "enterprise", MaxMemories: 0, MaxStorageMB: 100_000, MaxNamespaces: 0,
		RequestsPerSecond: 200, RequestsPerMonth: 0, RetentionDays: 0,
		SemanticSearch: true, Websocket: true, Analytics: true,
		Links: true, Sessions: true, AutoSave: true, SynapseProxy: true,
		Webhooks: 0, MaxAPIKeys: 0, CustomEmbeddings: true,
	}
)

var tiers = map[string]Limits{
	"free":       Free,
	"pro":        Pro,
	"enterprise": Enterprise,
}

// GetTier returns the named tier's limits, falling back to Free for an
// unknown name (matches original_source's get_tier default).
func GetTier(name string) Limits {
	if l, ok := tiers[name]; ok {
		return l
	}
	return Free
}
