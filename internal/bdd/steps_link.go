package bdd

import (
	"fmt"
	"strings"

	"github.com/cucumber/godog"

	"github.com/engram-memory/engram/internal/model"
)

func init() {
	StepModules = append(StepModules, func(ctx *godog.ScenarioContext, s *Scenario) {
		ctx.Step(`^I link "([^"]*)" to "([^"]*)" as "([^"]*)"(?:\s+again)?$`, s.iLinkToAs)
		ctx.Step(`^the link is created$`, s.theLinkIsCreated)
		ctx.Step(`^the link is reported as a duplicate$`, s.theLinkIsReportedAsADuplicate)

		ctx.Step(`^I unlink the created link(?:\s+again)?$`, s.iUnlinkTheCreatedLink)
		ctx.Step(`^the unlink succeeds$`, s.theUnlinkSucceeds)
		ctx.Step(`^the unlink reports nothing to remove$`, s.theUnlinkReportsNothingToRemove)

		ctx.Step(`^a cycle of memories "([^"]*)" -> "([^"]*)" -> "([^"]*)" -> "([^"]*)" linked as "([^"]*)"$`, s.aCycleOfMemoriesLinked)
		ctx.Step(`^I traverse the graph from "([^"]*)" with max depth (\d+)$`, s.iTraverseTheGraphFromWithMaxDepth)
		ctx.Step(`^the graph has exactly (\d+) nodes$`, s.theGraphHasExactlyNNodes)
		ctx.Step(`^the graph has exactly (\d+) edges$`, s.theGraphHasExactlyNEdges)
		ctx.Step(`^no node appears twice in the graph$`, s.noNodeAppearsTwiceInTheGraph)
	})
}

func (s *Scenario) memoryID(label string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.ids[label]
	if !ok {
		return 0, fmt.Errorf("memory labeled %q was never stored in this scenario", label)
	}
	return id, nil
}

func (s *Scenario) iLinkToAs(sourceLabel, targetLabel, relation string) error {
	st, err := s.store()
	if err != nil {
		return err
	}
	sourceID, err := s.memoryID(sourceLabel)
	if err != nil {
		return err
	}
	targetID, err := s.memoryID(targetLabel)
	if err != nil {
		return err
	}
	id, dup, err := st.Link(s.ctx, sourceID, targetID, model.LinkRelation(relation), nil)
	if err != nil {
		return err
	}
	s.lastLinkID = id
	s.lastLinkDup = dup
	return nil
}

func (s *Scenario) theLinkIsCreated() error {
	if s.lastLinkDup {
		return fmt.Errorf("expected a new link, got a duplicate")
	}
	if s.lastLinkID == 0 {
		return fmt.Errorf("expected a non-zero link id")
	}
	return nil
}

func (s *Scenario) theLinkIsReportedAsADuplicate() error {
	if !s.lastLinkDup {
		return fmt.Errorf("expected link to report a duplicate")
	}
	return nil
}

func (s *Scenario) iUnlinkTheCreatedLink() error {
	st, err := s.store()
	if err != nil {
		return err
	}
	ok, err := st.Unlink(s.ctx, s.lastLinkID)
	if err != nil {
		return err
	}
	s.lastUnlinkOK = ok
	return nil
}

func (s *Scenario) theUnlinkSucceeds() error {
	if !s.lastUnlinkOK {
		return fmt.Errorf("expected unlink to succeed")
	}
	return nil
}

func (s *Scenario) theUnlinkReportsNothingToRemove() error {
	if s.lastUnlinkOK {
		return fmt.Errorf("expected unlink to report nothing removed")
	}
	return nil
}

// aCycleOfMemoriesLinked stores three labeled memories a, b, c and links
// them a -> b -> c -> a. The fourth label d must equal a in the feature
// text, so the cycle closes back on the first memory rather than a new one.
func (s *Scenario) aCycleOfMemoriesLinked(a, b, c, d, relation string) error {
	st, err := s.store()
	if err != nil {
		return err
	}
	labels := []string{a, b, c}
	for _, label := range labels {
		id, _, err := st.Store(s.ctx, model.Memory{
			Content:    fmt.Sprintf("cycle memory %s", label),
			MemoryType: model.TypeFact,
			Importance: 5,
			Namespace:  s.namespace,
		})
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.ids[label] = id
		s.mu.Unlock()
	}
	if d != a {
		return fmt.Errorf("cycle must close back on %q, got %q", a, d)
	}
	edges := [][2]string{{a, b}, {b, c}, {c, a}}
	for _, e := range edges {
		srcID, err := s.memoryID(e[0])
		if err != nil {
			return err
		}
		dstID, err := s.memoryID(e[1])
		if err != nil {
			return err
		}
		if _, _, err := st.Link(s.ctx, srcID, dstID, model.LinkRelation(relation), nil); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scenario) iTraverseTheGraphFromWithMaxDepth(rootLabel string, maxDepth int) error {
	st, err := s.store()
	if err != nil {
		return err
	}
	rootID, err := s.memoryID(rootLabel)
	if err != nil {
		return err
	}
	graph, err := st.Graph(s.ctx, rootID, maxDepth, "")
	if err != nil {
		return err
	}
	s.lastGraph = graph
	return nil
}

func (s *Scenario) theGraphHasExactlyNNodes(n int) error {
	if len(s.lastGraph.Nodes) != n {
		var got []string
		for _, node := range s.lastGraph.Nodes {
			got = append(got, fmt.Sprintf("node %d depth=%d", node.ID, node.Depth))
		}
		return fmt.Errorf("expected %d graph nodes, got %d:\n%s", n, len(s.lastGraph.Nodes), lineDiff(make([]string, n), got))
	}
	return nil
}

func (s *Scenario) theGraphHasExactlyNEdges(n int) error {
	if len(s.lastGraph.Edges) != n {
		return fmt.Errorf("expected %d graph edges, got %d", n, len(s.lastGraph.Edges))
	}
	return nil
}

func (s *Scenario) noNodeAppearsTwiceInTheGraph() error {
	seen := map[int64]bool{}
	var dupes []string
	for _, node := range s.lastGraph.Nodes {
		if seen[node.ID] {
			dupes = append(dupes, fmt.Sprintf("%d", node.ID))
		}
		seen[node.ID] = true
	}
	if len(dupes) > 0 {
		return fmt.Errorf("node(s) %s appear more than once in the graph", strings.Join(dupes, ", "))
	}
	return nil
}
