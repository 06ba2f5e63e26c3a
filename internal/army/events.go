package army

// EventType names a grid notification.
type EventType string

const (
	EventUnitAdded    EventType = "unit_added"
	EventUnitMoved    EventType = "unit_moved"
	EventUnitMerged   EventType = "unit_merged"
	EventUnitSwapped  EventType = "unit_swapped"
	EventUnitRemoved  EventType = "unit_removed"
	EventArmyImported EventType = "army_imported"
)

// Event is delivered to listeners after a mutation has been committed.
type Event struct {
	Type EventType `json:"type"`
	Unit Unit      `json:"unit"`
	// From is the origin cell of a move, merge or swap.
	From *Position `json:"from,omitempty"`
	// Other is the donor of a merge or the displaced unit of a swap.
	Other *Unit `json:"other,omitempty"`
	Value int   `json:"armyValue"`
}

// Listener receives grid events. It runs on the mutating goroutine
// after the grid lock has been released.
type Listener func(Event)

// Subscribe registers l for all future events.
func (g *Grid) Subscribe(l Listener) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listeners = append(g.listeners, l)
}

// notify snapshots the listeners and the current army value. Callers
// hold mu and run the returned func after unlocking.
func (g *Grid) notify(ev Event) func() {
	ev.Value = g.value
	ls := make([]Listener, len(g.listeners))
	copy(ls, g.listeners)
	return func() {
		for _, l := range ls {
			l(ev)
		}
	}
}
