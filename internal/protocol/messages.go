package protocol

// Event is a loosely-typed structured record appended to an agent's event log
// and mirrored onto the observer stream. Keys "tick" and "type" are always
// present.
type Event map[string]interface{}

type ItemStack struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
}

// HelloMsg is the observer handshake.
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ObserverName    string `json:"observer_name,omitempty"`
}

type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id"`
	ColonyID        string `json:"colony_id"`
	TickRateHz      int    `json:"tick_rate_hz"`
	Tick            uint64 `json:"tick"`
}

// TickSummaryMsg is pushed once per tick to connected observers.
type TickSummaryMsg struct {
	Type   string   `json:"type"`
	Tick   uint64   `json:"tick"`
	Digest string   `json:"digest"`
	Jobs   JobStats `json:"jobs"`
	Agents int      `json:"agents"`
}

// JobStats counts jobs by lifecycle state and blocked reason. It answers the
// operator question "how many jobs are stuck, and why" without halting the
// simulation.
type JobStats struct {
	Pending   int    `json:"pending"`
	Claimed   int    `json:"claimed"`
	Cooldown  int    `json:"cooldown"`
	Completed uint64 `json:"completed"`
	Abandoned uint64 `json:"abandoned"`
	Expired   uint64 `json:"expired"`

	BlockedMaterials int `json:"blocked_materials"`
	BlockedStorage   int `json:"blocked_storage"`
}

// JobListMsg answers an observer JOB_LIST request with the currently blocked
// or stalled jobs.
type JobListMsg struct {
	Type string     `json:"type"`
	Tick uint64     `json:"tick"`
	Jobs []JobBrief `json:"jobs"`
}

type JobBrief struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	Category string `json:"category"`
	Pos      [3]int `json:"pos"`
	Priority int    `json:"priority"`
	Claimant string `json:"claimant,omitempty"`
	Blocked  string `json:"blocked,omitempty"`
	Progress int    `json:"progress"`
	Required int    `json:"required"`
}
