package product

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
)

// HistoryEntry is one line of a product's audit trail.
type HistoryEntry struct {
	Time  float64 `json:"time" yaml:"time"`
	Event string  `json:"event" yaml:"event"`
}

// Product is a work piece moving through the plant. While it sits in a
// device buffer or an AGV payload, that holder is its only owner.
type Product struct {
	ID       string
	Type     string
	OrderID  string
	Location string

	// Route lists the device ids the product has to visit in order. An empty
	// route accepts any move.
	Route []string
	step  int

	History []HistoryEntry
}

// Option customises a new product.
type Option func(*Product)

// WithID overrides the generated id.
func WithID(id string) Option {
	return func(p *Product) { p.ID = id }
}

// WithOrder attaches the product to a customer order.
func WithOrder(orderID string) Option {
	return func(p *Product) { p.OrderID = orderID }
}

// WithRoute sets the process route.
func WithRoute(route ...string) Option {
	return func(p *Product) { p.Route = slices.Clone(route) }
}

// New creates a product of the given type at location, created at time at.
func New(productType, location string, at float64, opts ...Option) *Product {
	p := &Product{
		ID:       "prod_" + uuid.NewString()[:8],
		Type:     productType,
		Location: location,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.AddHistory(at, fmt.Sprintf("Created at %s", location))
	return p
}

// AddHistory appends an event to the audit trail.
func (p *Product) AddHistory(at float64, event string) {
	p.History = append(p.History, HistoryEntry{Time: at, Event: event})
}

// NextStop returns the next device on the route, or "" if the route is
// empty or finished.
func (p *Product) NextStop() string {
	if p.step >= len(p.Route) {
		return ""
	}
	return p.Route[p.step]
}

// CheckMove reports whether moving the product onto deviceID follows its
// route. The reason is empty when the move is allowed.
func (p *Product) CheckMove(at float64, deviceID string) (bool, string) {
	if len(p.Route) == 0 {
		return true, ""
	}
	next := p.NextStop()
	if next == "" {
		return false, fmt.Sprintf("product %s already finished its route, cannot move to %s", p.ID, deviceID)
	}
	if next != deviceID {
		return false, fmt.Sprintf("product %s must go to %s next, not %s", p.ID, next, deviceID)
	}
	return true, ""
}

// UpdateLocation moves the location tag to deviceID and advances the route
// when deviceID is the expected next stop. It returns false if the move
// breaks the route; the tag is updated anyway.
func (p *Product) UpdateLocation(deviceID string, at float64) bool {
	ok, reason := p.CheckMove(at, deviceID)
	p.Location = deviceID
	if !ok {
		p.AddHistory(at, fmt.Sprintf("Moved to %s off route: %s", deviceID, reason))
		return false
	}
	if len(p.Route) > 0 {
		p.step++
	}
	p.AddHistory(at, fmt.Sprintf("Moved to %s", deviceID))
	return true
}

func (p *Product) String() string {
	return fmt.Sprintf("Product(%s, type=%s, at=%s)", p.ID, p.Type, p.Location)
}
