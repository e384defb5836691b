package sync2

import (
	"runtime"
	"sync/atomic"
	"time"
)

// Side identifies which of the two parties in a two-sided signal is
// currently expected to act: the server (channel dispatcher / fetcher
// worker) or the client (proxy filter).
type Side uint32

const (
	SideServer Side = 0
	SideClient Side = 1
)

func other(s Side) Side {
	if s == SideServer {
		return SideClient
	}
	return SideServer
}

// spinPollUnit bounds how many Gosched-yielding iterations WaitOnThisSide
// spins before backing off to sleeping between polls. Kept small: this is a
// polling reconstruction of a blocking kernel event pair, and a long tight
// spin would just burn CPU across process boundaries for no benefit.
const spinPollUnit = 256

// pollBackoff is the sleep between polls once the tight-spin budget is
// exhausted.
const pollBackoff = 200 * time.Microsecond

// Signal is a two-sided signal: exactly one side is "active" (its turn)
// at any moment, enforcing strict ping-pong between a waiting side and a
// working side without lost wakeups. turn records whose turn it is, and
// broadcastEpoch lets shutdown release every waiter regardless of whose
// turn it technically is.
//
// Both words are meant to live in a shared-memory region so that two
// unrelated processes mapping the same region observe the same turn.
type Signal struct {
	turn           *uint32
	broadcastEpoch *uint32
}

// NewSignal wraps the given words as a Signal. turnWord should start at
// uint32(SideServer) so the server acts first (it owns the fetcher and must
// populate video info before any client request can be answered).
func NewSignal(turnWord, epochWord *uint32) *Signal {
	return &Signal{turn: turnWord, broadcastEpoch: epochWord}
}

// SwitchToOtherSide wakes the partner and relinquishes any claim to being
// the active side. The caller holds no exclusive claim after this call
// returns; the partner must eventually switch back or the protocol stalls
// (shutdown is the only escape).
func (s *Signal) SwitchToOtherSide(from Side) {
	atomic.StoreUint32(s.turn, uint32(other(from)))
}

// WaitOnThisSide blocks until the partner calls SwitchToOtherSide, putting
// this side back in control, or until shutdown is observed, or until
// timeout elapses (timeout <= 0 means wait indefinitely, subject only to
// shutdown). shutdown is polled on every iteration so it always wins over
// a stalled partner. It returns true only when this side's turn has come;
// a release by shutdown, a SignalAll broadcast or the timeout returns false.
func (s *Signal) WaitOnThisSide(side Side, timeout time.Duration, shutdown func() bool) bool {
	var deadline time.Time
	hasDeadline := timeout > 0
	if hasDeadline {
		deadline = time.Now().Add(timeout)
	}
	startEpoch := atomic.LoadUint32(s.broadcastEpoch)

	for spins := 0; ; spins++ {
		if atomic.LoadUint32(s.turn) == uint32(side) {
			return true
		}
		if atomic.LoadUint32(s.broadcastEpoch) != startEpoch {
			// A shutdown broadcast released every waiter regardless of turn.
			return false
		}
		if shutdown() {
			return false
		}
		if hasDeadline && time.Now().After(deadline) {
			return false
		}
		if spins < spinPollUnit {
			runtime.Gosched()
			continue
		}
		time.Sleep(pollBackoff)
	}
}

// SignalAll broadcasts to every waiter on this signal, regardless of whose
// turn it currently is. Used only during shutdown: it lets a client stuck
// in WaitOnThisSide wake up and observe the shutdown flag instead of
// waiting for a partner that will never switch back.
func (s *Signal) SignalAll() {
	atomic.AddUint32(s.broadcastEpoch, 1)
}

// CondVar pairs a Spinlock guarding a shared-memory slot with the two-sided
// signal used to wait on changes to that slot. The request condition
// variable and each clip's per-slot response condition variables are all
// CondVars.
type CondVar struct {
	Lock   *Spinlock
	Signal *Signal
}

// NewCondVar builds a CondVar over the given lock word, turn word and
// broadcast-epoch word.
func NewCondVar(lockWord, turnWord, epochWord *uint32) *CondVar {
	return &CondVar{
		Lock:   NewSpinlock(lockWord),
		Signal: NewSignal(turnWord, epochWord),
	}
}

// SyncGroup is, per clip, the collection of response condition variables
// keyed by response-slot index.
type SyncGroup struct {
	responseConds []*CondVar
}

// NewSyncGroup wraps conds (already constructed, one per response slot) as
// a SyncGroup.
func NewSyncGroup(conds []*CondVar) *SyncGroup {
	return &SyncGroup{responseConds: conds}
}

// Cond returns the response condition variable for the given slot index.
func (g *SyncGroup) Cond(slot int) *CondVar {
	return g.responseConds[slot]
}

// SlotCount returns the number of response slots in this group.
func (g *SyncGroup) SlotCount() int {
	return len(g.responseConds)
}
