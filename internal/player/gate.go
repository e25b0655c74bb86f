package player

// gate is the in-flight guard for submissions. It is confined to the session
// loop goroutine, which is what makes the check-and-set atomic.
//
// After a non-final submission the gate stays closed until the follow-up
// state fetch (generation >= holdGen) resolves, so an answer can never be
// sent against a question the server already moved past.
type gate struct {
	inFlight bool
	holding  bool
	holdGen  uint64
}

func (g *gate) acquire() bool {
	if g.inFlight {
		return false
	}
	g.inFlight = true
	return true
}

func (g *gate) release() {
	g.inFlight = false
	g.holding = false
	g.holdGen = 0
}

// holdUntil keeps the gate closed until a fetch of generation gen or newer resolves.
func (g *gate) holdUntil(gen uint64) {
	g.holding = true
	g.holdGen = gen
}

// fetchResolved releases a hold once the awaited fetch (or a newer one) is done.
func (g *gate) fetchResolved(gen uint64) {
	if g.holding && gen >= g.holdGen {
		g.release()
	}
}
