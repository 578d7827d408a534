package topic

import (
	"strings"
)

// TopicBuilder encapsulates the logic for constructing MQTT topic strings.
type TopicBuilder struct {
	// root is the base namespace for all topics (e.g., "agvsim", "factory/sim").
	root string
}

// NewTopicBuilder creates a new instance of TopicBuilder with the specified root namespace.
func NewTopicBuilder(root string) *TopicBuilder {
	return &TopicBuilder{root: strings.Trim(root, "/")}
}

// Root returns the namespace of the builder.
func (b *TopicBuilder) Root() string { return b.root }

// AGVStatus returns the topic a vehicle publishes its status reports to.
// The line segment is left out when lineID is empty.
func (b *TopicBuilder) AGVStatus(lineID, agvID string) string {
	return b.build(lineID, SegmentAGV, agvID, SuffixStatus)
}

// AGVStatusWildcard returns the filter matching the status of every vehicle
// on every line.
// Result: {root}/#
func (b *TopicBuilder) AGVStatusWildcard() string {
	return b.build("", MultiWildcard)
}

// LineStatusWildcard returns the filter matching the status of every
// vehicle on one line.
// Result: {root}/{lineID}/agv/+/status
func (b *TopicBuilder) LineStatusWildcard(lineID string) string {
	return b.build(lineID, SegmentAGV, Wildcard, SuffixStatus)
}

// SimulatorState returns the retained topic carrying the simulator state.
func (b *TopicBuilder) SimulatorState() string {
	return b.build("", SegmentSimulator, SuffixState)
}

// build joins the non-empty segments under the root.
func (b *TopicBuilder) build(lineID string, segments ...string) string {
	parts := make([]string, 0, len(segments)+2)
	if b.root != "" {
		parts = append(parts, b.root)
	}
	if lineID != "" {
		parts = append(parts, lineID)
	}
	parts = append(parts, segments...)
	return strings.Join(parts, "/")
}

// ParseAGVStatus splits a status topic built by AGVStatus into its line and
// vehicle id. line is empty for vehicles without a line.
func (b *TopicBuilder) ParseAGVStatus(topic string) (line, agvID string, ok bool) {
	rest := topic
	if b.root != "" {
		var found bool
		if rest, found = strings.CutPrefix(topic, b.root+"/"); !found {
			return "", "", false
		}
	}
	parts := strings.Split(rest, "/")
	switch {
	case len(parts) == 3 && parts[0] == SegmentAGV && parts[2] == SuffixStatus:
		return "", parts[1], parts[1] != ""
	case len(parts) == 4 && parts[1] == SegmentAGV && parts[3] == SuffixStatus:
		return parts[0], parts[2], parts[0] != "" && parts[2] != ""
	}
	return "", "", false
}
