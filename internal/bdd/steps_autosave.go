package bdd

import (
	"fmt"

	"github.com/cucumber/godog"

	"github.com/engram-memory/engram/internal/autosave"
)

func init() {
	StepModules = append(StepModules, func(ctx *godog.ScenarioContext, s *Scenario) {
		ctx.Step(`^an autosave tracker with message threshold (\d+)$`, s.anAutosaveTrackerWithMessageThreshold)
		ctx.Step(`^I track a stored memory and tick the autosave (\d+) times$`, s.iTrackAStoredMemoryAndTickTheAutosaveNTimes)
		ctx.Step(`^the first (\d+) ticks produce no checkpoint$`, s.theFirstNTicksProduceNoCheckpoint)
		ctx.Step(`^the (\d+)(?:st|nd|rd|th) tick produces a checkpoint with reason "([^"]*)" and (\d+) total changes$`, s.theNthTickProducesACheckpointWithReasonAndNTotalChanges)
		ctx.Step(`^the autosave delta is now empty$`, s.theAutosaveDeltaIsNowEmpty)
		ctx.Step(`^the autosave message count is now (\d+)$`, s.theAutosaveMessageCountIsNow)
	})
}

func (s *Scenario) anAutosaveTrackerWithMessageThreshold(threshold int) error {
	saver, err := s.suite.App.AutoSaver(s.ctx, s.tenantID, "bdd-project")
	if err != nil {
		return err
	}
	saver.Configure(autosave.Config{MessageThreshold: threshold}, map[string]bool{"message_threshold": true})
	s.autosaver = saver
	return nil
}

func (s *Scenario) iTrackAStoredMemoryAndTickTheAutosaveNTimes(n int) error {
	s.lastTicks = nil
	for i := 0; i < n; i++ {
		id, _, err := mustStore(s)
		if err != nil {
			return err
		}
		s.autosaver.TrackStore(id)
		result, err := s.autosaver.Tick(s.ctx, nil)
		if err != nil {
			return err
		}
		s.lastTicks = append(s.lastTicks, result)
	}
	return nil
}

func mustStore(s *Scenario) (int64, bool, error) {
	st, err := s.store()
	if err != nil {
		return 0, false, err
	}
	return st.Store(s.ctx, memoryFixture())
}

func (s *Scenario) theFirstNTicksProduceNoCheckpoint(n int) error {
	if len(s.lastTicks) < n {
		return fmt.Errorf("expected at least %d ticks recorded, got %d", n, len(s.lastTicks))
	}
	for i := 0; i < n; i++ {
		if s.lastTicks[i] != nil {
			return fmt.Errorf("tick %d produced a checkpoint, expected none", i+1)
		}
	}
	return nil
}

func (s *Scenario) theNthTickProducesACheckpointWithReasonAndNTotalChanges(n int, reason string, totalChanges int) error {
	if n < 1 || n > len(s.lastTicks) {
		return fmt.Errorf("tick %d was never recorded (%d ticks ran)", n, len(s.lastTicks))
	}
	result := s.lastTicks[n-1]
	if result == nil {
		return fmt.Errorf("tick %d produced no checkpoint", n)
	}
	if result.Reason != reason {
		return fmt.Errorf("expected reason %q, got %q", reason, result.Reason)
	}
	if got := result.Delta.TotalChanges(); got != totalChanges {
		return fmt.Errorf("expected %d total changes, got %d", totalChanges, got)
	}
	return nil
}

func (s *Scenario) theAutosaveDeltaIsNowEmpty() error {
	if !s.autosaver.Status().Delta.IsEmpty() {
		return fmt.Errorf("expected an empty delta after checkpointing")
	}
	return nil
}

func (s *Scenario) theAutosaveMessageCountIsNow(count int) error {
	if got := s.autosaver.Status().MessageCount; got != count {
		return fmt.Errorf("expected message_count=%d, got %d", count, got)
	}
	return nil
}
