package bdd

import (
	"fmt"

	"github.com/cucumber/godog"

	"github.com/engram-memory/engram/internal/model"
)

func init() {
	StepModules = append(StepModules, func(ctx *godog.ScenarioContext, s *Scenario) {
		ctx.Step(`^a fresh tenant store$`, s.aFreshTenantStore)
		ctx.Step(`^I store "([^"]*)" with importance (\d+) and type "([^"]*)"$`, s.iStoreWithImportanceAndType)
		ctx.Step(`^the store call succeeds with a new id$`, s.theStoreCallSucceedsWithANewID)
		ctx.Step(`^the store call reports a duplicate$`, s.theStoreCallReportsADuplicate)

		ctx.Step(`^I search for "([^"]*)"$`, s.iSearchFor)
		ctx.Step(`^the search results include the stored memory with match type "([^"]*)"$`, s.theSearchResultsIncludeTheStoredMemoryWithMatchType)
		ctx.Step(`^the search results are empty$`, s.theSearchResultsAreEmpty)

		ctx.Step(`^I request stats$`, s.iRequestStats)
		ctx.Step(`^the stats report total memories (\d+)$`, s.theStatsReportTotalMemories)
		ctx.Step(`^the stats report (\d+) memory of type "([^"]*)"$`, s.theStatsReportNMemoriesOfType)

		ctx.Step(`^I store (\d+) memories in namespace "([^"]*)"$`, s.iStoreNMemoriesInNamespace)
		ctx.Step(`^I list memories in namespace "([^"]*)"$`, s.iListMemoriesInNamespace)
		ctx.Step(`^exactly (\d+) memories are listed$`, s.exactlyNMemoriesAreListed)
		ctx.Step(`^no listed memory has a namespace other than "([^"]*)"$`, s.noListedMemoryHasANamespaceOtherThan)

		ctx.Step(`^I recall memories with minimum importance (\d+)$`, s.iRecallMemoriesWithMinimumImportance)
		ctx.Step(`^exactly (\d+) memory is recalled$`, s.exactlyNMemoriesAreListed)
		ctx.Step(`^the recalled memory has importance (\d+)$`, s.theRecalledMemoryHasImportance)
	})
}

func (s *Scenario) aFreshTenantStore() error {
	_, err := s.store()
	return err
}

func (s *Scenario) iStoreWithImportanceAndType(label string, importance int, memType string) error {
	st, err := s.store()
	if err != nil {
		return err
	}
	id, dup, err := st.Store(s.ctx, model.Memory{
		Content:    label,
		MemoryType: model.MemoryType(memType),
		Importance: importance,
		Namespace:  s.namespace,
	})
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.ids[label] = id
	s.lastStoreID = id
	s.lastStoreDup = dup
	s.mu.Unlock()
	return nil
}

func (s *Scenario) theStoreCallSucceedsWithANewID() error {
	if s.lastStoreDup {
		return fmt.Errorf("expected a new id, got a duplicate")
	}
	if s.lastStoreID == 0 {
		return fmt.Errorf("expected a non-zero id")
	}
	return nil
}

func (s *Scenario) theStoreCallReportsADuplicate() error {
	if !s.lastStoreDup {
		return fmt.Errorf("expected store to report a duplicate")
	}
	return nil
}

func (s *Scenario) iSearchFor(query string) error {
	st, err := s.store()
	if err != nil {
		return err
	}
	results, err := st.SearchText(s.ctx, query, s.namespace, 20)
	if err != nil {
		return err
	}
	s.lastResults = results
	return nil
}

func (s *Scenario) theSearchResultsIncludeTheStoredMemoryWithMatchType(matchType string) error {
	for _, r := range s.lastResults {
		if model.MatchType(matchType) == r.MatchType {
			return nil
		}
	}
	return fmt.Errorf("no search result with match type %q among %d result(s)", matchType, len(s.lastResults))
}

func (s *Scenario) theSearchResultsAreEmpty() error {
	if len(s.lastResults) != 0 {
		return fmt.Errorf("expected no search results, got %d", len(s.lastResults))
	}
	return nil
}

func (s *Scenario) iRequestStats() error {
	st, err := s.store()
	if err != nil {
		return err
	}
	stats, err := st.Stats(s.ctx, s.namespace)
	if err != nil {
		return err
	}
	s.lastStats = stats
	return nil
}

func (s *Scenario) theStatsReportTotalMemories(total int) error {
	if s.lastStats.TotalMemories != total {
		return fmt.Errorf("expected total_memories=%d, got %d", total, s.lastStats.TotalMemories)
	}
	return nil
}

func (s *Scenario) theStatsReportNMemoriesOfType(count int, memType string) error {
	got := s.lastStats.ByType[model.MemoryType(memType)]
	if got != count {
		return fmt.Errorf("expected %d memories of type %q, got %d", count, memType, got)
	}
	return nil
}

func (s *Scenario) iStoreNMemoriesInNamespace(n int, namespace string) error {
	st, err := s.storeIn(namespace)
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if _, _, err := st.Store(s.ctx, model.Memory{
			Content:    fmt.Sprintf("memory %s #%d", namespace, i),
			MemoryType: model.TypeFact,
			Importance: 5,
			Namespace:  namespace,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scenario) iListMemoriesInNamespace(namespace string) error {
	st, err := s.storeIn(namespace)
	if err != nil {
		return err
	}
	memories, err := st.List(s.ctx, model.ListFilter{Namespace: namespace, Limit: 1000})
	if err != nil {
		return err
	}
	s.lastMemories = memories
	return nil
}

func (s *Scenario) exactlyNMemoriesAreListed(n int) error {
	if len(s.lastMemories) != n {
		return fmt.Errorf("expected exactly %d memories, got %d", n, len(s.lastMemories))
	}
	return nil
}

func (s *Scenario) noListedMemoryHasANamespaceOtherThan(namespace string) error {
	var wantNamespaces, gotNamespaces []string
	for _, m := range s.lastMemories {
		wantNamespaces = append(wantNamespaces, namespace)
		gotNamespaces = append(gotNamespaces, m.Namespace)
		if m.Namespace != namespace {
			return fmt.Errorf("memory %d has namespace %q, expected %q:\n%s", m.ID, m.Namespace, namespace, lineDiff(wantNamespaces, gotNamespaces))
		}
	}
	return nil
}

func (s *Scenario) iRecallMemoriesWithMinimumImportance(minImportance int) error {
	st, err := s.store()
	if err != nil {
		return err
	}
	memories, err := st.GetPriority(s.ctx, s.namespace, 20, minImportance)
	if err != nil {
		return err
	}
	s.lastMemories = memories
	return nil
}

func (s *Scenario) theRecalledMemoryHasImportance(importance int) error {
	if len(s.lastMemories) != 1 {
		return fmt.Errorf("expected exactly one recalled memory, got %d", len(s.lastMemories))
	}
	if s.lastMemories[0].Importance != importance {
		return fmt.Errorf("expected importance %d, got %d", importance, s.lastMemories[0].Importance)
	}
	return nil
}
