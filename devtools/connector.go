package devtools

import "github.com/kandev/hsm"

// BridgeConnector adapts a Hub into an hsm.Connector for one named service,
// so New(machine, Options{DevTools: devtools.NewBridgeConnector(id, hub)})
// streams that service's updates to any subscribed inspector client.
type BridgeConnector struct {
	serviceID string
	hub       *Hub
}

// NewBridgeConnector returns a Connector that publishes serviceID's updates
// onto hub.
func NewBridgeConnector(serviceID string, hub *Hub) *BridgeConnector {
	return &BridgeConnector{serviceID: serviceID, hub: hub}
}

// Init broadcasts the starting state.
func (c *BridgeConnector) Init(state *hsm.State) {
	c.hub.Broadcast(c.serviceID, &Message{
		ServiceID: c.serviceID,
		Type:      "init",
		Value:     state.Value,
		Context:   state.Context,
	})
}

// Send broadcasts a post-transition state, tagged with the event that
// produced it.
func (c *BridgeConnector) Send(event hsm.Event, state *hsm.State) {
	c.hub.Broadcast(c.serviceID, &Message{
		ServiceID: c.serviceID,
		Type:      "send",
		EventType: string(event.Type),
		Value:     state.Value,
		Context:   state.Context,
	})
}
