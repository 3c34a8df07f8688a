package modes

// Assignment is the per-run usage table: mode index -> {used, id}.
// Classification marks modes used; AssignIDs then numbers them densely in
// registry order.
type Assignment struct {
	reg      *Registry
	used     []bool
	ids      []int
	order    []int
	width    int
	assigned bool
}

// NewAssignment returns an empty usage table for the registry.
func (r *Registry) NewAssignment() *Assignment {
	a := &Assignment{reg: r}
	a.Reset()
	return a
}

// Registry returns the registry the table indexes.
func (a *Assignment) Registry() *Registry {
	return a.reg
}

// Reset clears usage and IDs so the table can serve another run.
func (a *Assignment) Reset() {
	n := a.reg.Len()
	a.used = make([]bool, n)
	a.ids = make([]int, n)
	for i := range a.ids {
		a.ids[i] = -1
	}
	a.order = nil
	a.width = 0
	a.assigned = false
}

// MarkUsed records that a port was classified into mode i.
func (a *Assignment) MarkUsed(i int) {
	a.used[i] = true
}

// Used reports whether mode i was marked.
func (a *Assignment) Used(i int) bool {
	return a.used[i]
}

// AssignIDs numbers every used mode in registry order starting at 0 and
// returns the bit width of the ID space. Calling it again recomputes the
// same result.
func (a *Assignment) AssignIDs() int {
	a.order = a.order[:0]
	next := 0
	for i, u := range a.used {
		if !u {
			a.ids[i] = -1
			continue
		}
		a.ids[i] = next
		a.order = append(a.order, i)
		next++
	}
	a.width = WidthBits(next)
	a.assigned = true
	return a.width
}

// Assigned reports whether AssignIDs has run since the last Reset.
func (a *Assignment) Assigned() bool {
	return a.assigned
}

// ID returns the assigned ID of mode i.
func (a *Assignment) ID(i int) (int, bool) {
	if !a.assigned || a.ids[i] < 0 {
		return 0, false
	}
	return a.ids[i], true
}

// Width returns the ID width computed by AssignIDs.
func (a *Assignment) Width() int {
	return a.width
}

// UsedCount returns the number of used modes.
func (a *Assignment) UsedCount() int {
	n := 0
	for _, u := range a.used {
		if u {
			n++
		}
	}
	return n
}

// UsedModes returns the indexes of used modes in ID order.
func (a *Assignment) UsedModes() []int {
	return append([]int(nil), a.order...)
}
