package main

import "github.com/kandev/hsm"

// trafficLight is a minimal compiled Machine used to demonstrate the
// interpreter end to end: red -> green -> yellow -> red, each transition
// auto-scheduled by a delayed self-send action.
type trafficLight struct{}

const (
	stateRed    = "red"
	stateGreen  = "green"
	stateYellow = "yellow"
)

const eventAdvance hsm.EventType = "ADVANCE"

func (trafficLight) ID() string { return "traffic-light" }

func (trafficLight) InitialState() *hsm.State {
	return stateFor(stateRed)
}

func (trafficLight) ResolveState(partial *hsm.State) *hsm.State {
	if partial == nil {
		return stateFor(stateRed)
	}
	value, _ := partial.Value.(string)
	return stateFor(value)
}

func (trafficLight) Transition(state *hsm.State, event hsm.Event) *hsm.State {
	if event.Type != eventAdvance {
		return state
	}
	current, _ := state.Value.(string)
	switch current {
	case stateRed:
		return stateFor(stateGreen)
	case stateGreen:
		return stateFor(stateYellow)
	default:
		return stateFor(stateRed)
	}
}

func (trafficLight) Options() hsm.MachineOptions {
	return hsm.MachineOptions{}
}

// stateFor builds the state for value, with the delayed self-send action
// that drives the cycle forward.
func stateFor(value string) *hsm.State {
	return &hsm.State{
		Value: value,
		Actions: []hsm.Action{
			{
				Tag:   hsm.ActionSend,
				Event: hsm.NewEvent(eventAdvance, nil),
				Delay: &hsm.Delay{Ms: 2000},
			},
		},
		NextEvents: []hsm.EventType{eventAdvance},
	}
}
