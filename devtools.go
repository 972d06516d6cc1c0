package hsm

// Connector is the narrow capability the interpreter talks to for
// development-tools inspection: initialize with the starting state, then
// receive every (event, state) pair on each update. The core never
// references a specific external tool; devtools.BridgeConnector is the
// concrete implementation this module ships.
type Connector interface {
	Init(state *State)
	Send(event Event, state *State)
}
