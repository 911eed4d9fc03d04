package orchestrator

import (
	"fmt"
	"math"
)

// Accountant is the memory ledger for worker reservations, in MB.
//
// Capacity is budget minus margin. A reservation marked releasing belongs to
// a worker that is being evicted: it no longer counts against admission but
// stays in the ledger until Release confirms the process is gone.
//
// Accountant does no locking of its own; the orchestrator only touches it
// while holding its mutex so that a fit check and the matching Reserve are
// one atomic step.
type Accountant struct {
	budgetMB  int
	marginMB  int
	reserved  map[string]int
	releasing map[string]bool
}

// NewAccountant returns an empty ledger. A non-positive budget means unlimited.
func NewAccountant(budgetMB, marginMB int) *Accountant {
	if marginMB < 0 {
		marginMB = 0
	}
	return &Accountant{
		budgetMB:  budgetMB,
		marginMB:  marginMB,
		reserved:  make(map[string]int),
		releasing: make(map[string]bool),
	}
}

// Capacity is the memory that may be reserved in total.
func (a *Accountant) Capacity() int {
	if a.budgetMB <= 0 {
		return math.MaxInt32
	}
	c := a.budgetMB - a.marginMB
	if c < 0 {
		return 0
	}
	return c
}

// Used is the memory reserved by workers that are not being released.
func (a *Accountant) Used() int {
	n := 0
	for alias, mb := range a.reserved {
		if !a.releasing[alias] {
			n += mb
		}
	}
	return n
}

// Releasing is the memory held by workers that are being evicted.
func (a *Accountant) Releasing() int {
	n := 0
	for alias := range a.releasing {
		n += a.reserved[alias]
	}
	return n
}

// Free is Capacity minus Used.
func (a *Accountant) Free() int { return a.Capacity() - a.Used() }

// CanFit reports whether spec's memory fits in what is free now.
func (a *Accountant) CanFit(spec WorkerSpec) bool { return spec.MemoryMB <= a.Free() }

// Reserve books spec's memory under its alias.
func (a *Accountant) Reserve(spec WorkerSpec) error {
	if _, ok := a.reserved[spec.Alias]; ok {
		return fmt.Errorf("memory already reserved for %s", spec.Alias)
	}
	if !a.CanFit(spec) {
		return ErrResourceExhausted(spec.Alias, spec.MemoryMB, a.Free())
	}
	a.reserved[spec.Alias] = spec.MemoryMB
	return nil
}

// Reserved returns the reservation held by alias.
func (a *Accountant) Reserved(alias string) int { return a.reserved[alias] }

// MarkReleasing excludes alias's reservation from Used until Release.
func (a *Accountant) MarkReleasing(alias string) {
	if _, ok := a.reserved[alias]; ok {
		a.releasing[alias] = true
	}
}

// Release drops alias's reservation and returns its size.
func (a *Accountant) Release(alias string) int {
	mb := a.reserved[alias]
	delete(a.reserved, alias)
	delete(a.releasing, alias)
	return mb
}
