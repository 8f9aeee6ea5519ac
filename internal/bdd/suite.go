// Package bdd runs godog scenarios directly against the in-process core
// (the same *app.App the HTTP and MCP adapters dispatch to), with no HTTP
// client and no external database — grounded on
// internal/testutil/cucumber's TestSuite/TestScenario split but stripped
// to what an in-process core needs: no request/response plumbing, just
// scenario-scoped handles onto Store/AutoSave results.
package bdd

import (
	"context"
	"sync"

	"github.com/cucumber/godog"
	"github.com/google/uuid"

	"github.com/engram-memory/engram/internal/app"
	"github.com/engram-memory/engram/internal/autosave"
	"github.com/engram-memory/engram/internal/model"
	storereg "github.com/engram-memory/engram/internal/registry/store"
)

// Suite holds state shared by every scenario in a run: one *app.App, built
// once per TestFeatures invocation.
type Suite struct {
	App *app.App
}

// Scenario holds the state of a single scenario. Scenarios may run
// concurrently (godog's default), so each gets its own Scenario and no
// fields here are shared across scenarios.
type Scenario struct {
	suite *Suite
	ctx   context.Context

	tenantID  string
	namespace string

	mu sync.Mutex
	// ids maps a human label used in feature files ("memory A", "A", ...)
	// to the id Store returned for it.
	ids map[string]int64

	lastStoreID  int64
	lastStoreDup bool
	lastResults  []model.SearchResult
	lastMemories []model.Memory
	lastStats    model.Stats

	lastLinkID   int64
	lastLinkDup  bool
	lastUnlinkOK bool
	lastGraph    model.Graph

	autosaver *autosave.AutoSave
	lastTicks []*autosave.CheckpointResult
}

// StepModules is the list of functions used to register steps with a
// godog.ScenarioContext, following internal/testutil/cucumber's
// StepModules convention: each step-definition file appends its own
// registration function here via init().
var StepModules []func(ctx *godog.ScenarioContext, s *Scenario)

func newScenario(suite *Suite) *Scenario {
	return &Scenario{
		suite:     suite,
		ctx:       context.Background(),
		tenantID:  "bdd-" + uuid.NewString(),
		namespace: "default",
		ids:       map[string]int64{},
	}
}

func (s *Scenario) store() (storereg.Store, error) {
	return s.suite.App.Store(s.ctx, s.tenantID, s.namespace)
}

func (s *Scenario) storeIn(namespace string) (storereg.Store, error) {
	return s.suite.App.Store(s.ctx, s.tenantID, namespace)
}

// InitializeScenario wires every registered step module into a fresh
// Scenario, one per godog scenario run. Each scenario gets its own
// namespace-free tenant id so that namespace-scoped invariants (e.g.
// "list is scoped to a namespace") are exercised deliberately by the
// feature text, not accidentally by cross-scenario leakage.
func (suite *Suite) InitializeScenario(ctx *godog.ScenarioContext) {
	s := newScenario(suite)
	for _, module := range StepModules {
		module(ctx, s)
	}
}
