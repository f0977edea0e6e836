package scheduler

import (
	"encoding/json"
	"fmt"

	"github.com/cortex-prime/agentcore/internal/resolve"
	"github.com/cortex-prime/agentcore/pkg/action"
)

// internalParams is the union of parameter shapes the seven kinds of
// internal action (spec §4.4) accept, plus signal_goal_achieved — an eighth
// op this implementation adds to give the iteration controller's
// goal-achieved termination predicate (spec §4.5.7a) a concrete source,
// since §4.4's enumerated list does not name one. See DESIGN.md.
type internalParams struct {
	FeedID   string          `json:"feed_id"`
	Mode     string          `json:"mode"`
	Schedule string          `json:"schedule"`
	Name     string          `json:"name"`
	Value    json.RawMessage `json:"value"`
}

// dispatchInternal executes one internal-kind action without any external
// call-out, mutating the execution-scoped Store and Registry in place
// (spec §4.4: "take effect immediately upon completion").
func (s *Scheduler) dispatchInternal(a action.Action, params json.RawMessage) (json.RawMessage, error) {
	var p internalParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("internal action %s: invalid parameters: %w", a.Target, err)
		}
	}

	switch a.Target {
	case "add_context_feed":
		mode := resolve.FeedOnDemand
		if p.Mode == string(resolve.FeedPeriodic) {
			mode = resolve.FeedPeriodic
		}
		s.feeds.Register(resolve.FeedSpec{ID: p.FeedID, Mode: mode, Schedule: p.Schedule})
		return nil, nil
	case "remove_context_feed":
		s.feeds.Unregister(p.FeedID)
		return nil, nil
	case "update_context_feed":
		s.feeds.Bind(p.FeedID, p.Value)
		return nil, nil
	case "set_variable":
		s.store.SetVariable(p.Name, p.Value)
		return nil, nil
	case "delete_variable":
		s.store.DeleteVariable(p.Name)
		return nil, nil
	case "clear_context":
		s.store.ClearContext()
		return nil, nil
	case "list_context_feeds":
		specs := s.feeds.List()
		out, err := json.Marshal(specs)
		if err != nil {
			return nil, err
		}
		return out, nil
	case "signal_goal_achieved":
		s.goalAchieved.Store(true)
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown internal action target %q", a.Target)
	}
}
