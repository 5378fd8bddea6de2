// Package observerproto is the wire format of the read-only observer stream.
package observerproto

import (
	"idlecraft.ai/internal/sim/agent"
	"idlecraft.ai/internal/sim/geom"
)

// Version is the observer protocol version.
const Version = "0.1"

// Client -> Server. First message on the observer WS connection; may be re-sent
// to change settings.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	// EveryTicks thins the stream to one frame per N ticks.
	EveryTicks int `json:"every_ticks,omitempty"`
}

// HTTP response for GET /observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string     `json:"protocol_version"`
	SessionID       string     `json:"session_id"`
	Tick            uint64     `json:"tick"`
	Params          Params     `json:"params"`
	Nodes           []NodeInfo `json:"nodes"`
}

type Params struct {
	TickRateHz   int       `json:"tick_rate_hz"`
	InventoryCap int       `json:"inventory_cap"`
	Bounds       geom.Rect `json:"bounds"`
	Seed         int64     `json:"seed"`
}

type NodeInfo struct {
	ID         string   `json:"id"`
	Type       string   `json:"type"`
	Pos        geom.Vec `json:"pos"`
	Activities []string `json:"activities,omitempty"`
}

// Server -> Client. Sent every tick (or every EveryTicks).
type StateMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	Tick            uint64     `json:"tick"`
	Agent           agent.View `json:"agent"`
}

func NewStateMsg(v agent.View) StateMsg {
	return StateMsg{Type: "STATE", ProtocolVersion: Version, Tick: v.Tick, Agent: v}
}
