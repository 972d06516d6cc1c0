package hsm

// executeAction dispatches one action. A custom Executor always wins over
// tag dispatch; otherwise the tag selects one of the built-in shapes. An
// unrecognized tag with no Executor is a silent no-op outside of a debug
// log, since a compiler bug here should not take down a running service.
func (svc *Interpreter) executeAction(state *State, action Action, event Event) {
	if action.Executor != nil {
		action.Executor(state.Context, event, ActionInfo{Action: action, State: state})
		return
	}

	switch action.Tag {
	case ActionSend:
		svc.executeSend(state, action, event)
	case ActionCancel:
		svc.timers.Cancel(svc.options.Clock, action.CancelSendID)
	case ActionStart:
		svc.executeStart(state, action, event)
	case ActionStop:
		if action.Activity != nil {
			svc.stopChild(action.Activity.ID)
		}
	case ActionLog:
		svc.executeLog(state, action, event)
	case ActionInit:
		// init carries no side effect of its own; it exists so an action
		// list can be inspected uniformly.
	default:
		svc.options.Logger("unrecognized action tag", "service", svc.id, "tag", action.Tag)
	}
}

// executeSend resolves a send action's delay and target, then either
// dispatches immediately or schedules it through the timer registry keyed
// by SendID.
func (svc *Interpreter) executeSend(state *State, action Action, event Event) {
	deliver := func() {
		if action.To != "" {
			svc.sendTo(action.Event, action.To)
		} else {
			svc.Send(action.Event, nil)
		}
	}

	ms := svc.resolveDelay(state, action.Delay, event)
	if ms <= 0 {
		deliver()
		return
	}

	sendID := action.SendID
	if sendID == "" {
		sendID = string(action.Event.Type)
	}
	svc.timers.Schedule(svc.options.Clock, sendID, ms, deliver)
}

// resolveDelay turns a send action's Delay into a concrete millisecond
// count: unset means zero (immediate); otherwise an Fn, if set, is evaluated
// against the current context and event, else a Name looks up the machine's
// delays table, else the literal Ms is used.
func (svc *Interpreter) resolveDelay(state *State, delay *Delay, event Event) int64 {
	if delay == nil {
		return 0
	}
	if delay.Fn != nil {
		return delay.Fn(state.Context, event)
	}
	if delay.Name != "" {
		if def, ok := svc.machine.Options().Delays[delay.Name]; ok {
			if def.Fn != nil {
				return def.Fn(state.Context, event)
			}
			return def.Ms
		}
		svc.options.Logger("unknown delay name", "service", svc.id, "delay", delay.Name)
		return 0
	}
	return delay.Ms
}

// executeStart dispatches a start action: an invocation (Activity.Type ==
// InvokeActivity) looks the source factory up by Src and supervises
// whatever shape it returns, while any other activity type is handed to
// the activity table.
func (svc *Interpreter) executeStart(state *State, action Action, event Event) {
	activity := action.Activity
	if activity == nil {
		return
	}

	// A transient state can start and stop the same activity within one
	// step; if it is no longer marked active by the time actions run,
	// there is nothing to do.
	if state.Activities != nil && !state.Activities[activity.ID] {
		return
	}

	if activity.Type != InvokeActivity {
		svc.spawnActivity(*activity)
		return
	}

	factory, ok := svc.machine.Options().Services[activity.Src]
	if !ok {
		svc.options.Logger("unknown invocation source", "service", svc.id, "src", activity.Src)
		return
	}

	source := factory(state.Context, event)

	switch src := source.(type) {
	case Promise:
		svc.spawnPromise(activity.ID, src)
	case CallbackSource:
		svc.spawnCallback(activity.ID, src)
	case Machine:
		var initial *State
		switch {
		case activity.DataFn != nil:
			initial = &State{Context: activity.DataFn(state.Context, event)}
		case activity.Data != nil:
			initial = &State{Context: activity.Data}
		}
		svc.spawnChildServiceWithInitial(activity.ID, src, true, activity.Forward, initial)
	case string:
		// Reserved for future use; not an error.
	default:
		svc.options.Logger("invocation source has unsupported type", "service", svc.id, "src", activity.Src)
	}
}

// executeLog evaluates a log action's expression, if any, and hands the
// result to Options.Logger alongside its label.
func (svc *Interpreter) executeLog(state *State, action Action, event Event) {
	var value any
	if action.Expr != nil {
		value = action.Expr(state.Context, event)
	}
	svc.options.Logger(action.Label, "value", value)
}
