package topic

// Topic segments. Consumers subscribe to these, so changing them breaks
// existing dashboards.
const (
	// SegmentAGV groups all vehicle topics.
	// Structure: {root}[/{lineID}]/agv/{agvID}/status
	SegmentAGV = "agv"

	// SuffixStatus carries vehicle status reports.
	SuffixStatus = "status"

	// SegmentSimulator carries simulator-wide messages.
	// Structure: {root}/simulator/state
	SegmentSimulator = "simulator"

	// SuffixState is the retained online/offline marker of the simulator.
	SuffixState = "state"
)

// MQTT filter wildcards.
const (
	// Wildcard matches exactly one level.
	Wildcard = "+"

	// MultiWildcard matches the remaining levels and must come last.
	MultiWildcard = "#"
)
