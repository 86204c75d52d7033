// Package futex implements spec.md 4.10: a 256-bucket hashed waiter
// table keyed by (pid-or-inode, page, offset), with wait/wake/
// wake_bitset/requeue. Grounded on
// _examples/original_source/os/src/futex/futex.rs's FutexQueue table,
// translated from its Mutex<Vec<Waiter>>-per-bucket shape into Go: a
// waiter here is a plain (key, bitset, wake-closure) tuple rather than a
// parked-thread handle, so this package stays a leaf — the executor's
// wake() closure (already the kernel-wide "unblock a task" primitive) is
// all it needs from the task layer, keeping futex free of an import on
// internal/task.
package futex

import (
	"sync"

	"arona/internal/errno"
)

// Key identifies the wait queue a waiter belongs to (spec.md section 3).
// Which is the owning pid for a private futex (the only kind spec.md
// requires); Page is the page-aligned virtual address and Offset the
// byte offset within that page.
type Key struct {
	Which  uint64
	Page   uint64
	Offset uint64
}

const bucketCount = 256

// Futex operation and flag bits (spec.md sections 4.10/6), the standard
// Linux numeric layout.
const (
	OpWait        = 0
	OpWake        = 1
	OpFD          = 2
	OpRequeue     = 3
	OpCmpRequeue  = 4
	OpWakeOp      = 5
	OpWaitBitset  = 9
	OpWakeBitset  = 10
	FlagPrivate   = 128
	FlagClockRT   = 256
)

type waiter struct {
	key    Key
	bitset uint32
	wake   func()
	woken  bool
	queued bool
}

// Table is the fixed array of 256 waiter-queue buckets (spec.md 4.10).
type Table struct {
	buckets [bucketCount]bucket
}

type bucket struct {
	mu    sync.Mutex
	items []*waiter
}

func New() *Table { return &Table{} }

// hash is a Jenkins one-at-a-time hash over the key's three words,
// matching spec.md 4.10's "Jenkins-hash-2 of the three key words".
func hash(k Key) uint32 {
	var h uint32
	mix := func(v uint64) {
		for i := 0; i < 8; i++ {
			h += uint32(byte(v >> (8 * i)))
			h += h << 10
			h ^= h >> 6
		}
	}
	mix(k.Which)
	mix(k.Page)
	mix(k.Offset)
	h += h << 3
	h ^= h >> 11
	h += h << 15
	return h
}

func bucketIndex(k Key) uint32 { return hash(k) % bucketCount }

// Waiter is the handle Wait's caller holds to learn the outcome once
// woken, and to dequeue itself on timeout/signal.
type Waiter struct {
	w   *waiter
	tbl *Table
	idx uint32
}

// Enqueue registers a waiter on key's bucket, to be released by a
// matching Wake/WakeBitset/Requeue call. wake is the executor's
// re-enqueue closure for the blocked task.
func (t *Table) Enqueue(key Key, bitset uint32, wake func()) *Waiter {
	idx := bucketIndex(key)
	b := &t.buckets[idx]
	w := &waiter{key: key, bitset: bitset, wake: wake, queued: true}
	b.mu.Lock()
	b.items = append(b.items, w)
	b.mu.Unlock()
	return &Waiter{w: w, tbl: t, idx: idx}
}

// Woken reports whether a Wake call has already claimed this waiter.
func (w *Waiter) Woken() bool { return w.w.woken }

// Remove dequeues w if it is still queued (used on timeout or a pending
// signal, spec.md 4.10's wait() resume path), returning whether it was
// actually still waiting.
func (w *Waiter) Remove() bool {
	b := &w.tbl.buckets[w.idx]
	b.mu.Lock()
	defer b.mu.Unlock()
	if !w.w.queued {
		return false
	}
	for i, item := range b.items {
		if item == w.w {
			b.items = append(b.items[:i], b.items[i+1:]...)
			break
		}
	}
	w.w.queued = false
	return true
}

// Wake dequeues up to n waiters whose key matches key, calling their
// wake closure, and returns how many it woke (spec.md 4.10).
func (t *Table) Wake(key Key, n int) int {
	return t.wakeMatching(key, n, func(*waiter) bool { return true })
}

// WakeBitset is Wake restricted to waiters whose bitset shares a bit
// with bitset (spec.md 4.10's FUTEX_WAKE_BITSET).
func (t *Table) WakeBitset(key Key, n int, bitset uint32) int {
	return t.wakeMatching(key, n, func(w *waiter) bool { return w.bitset&bitset != 0 })
}

func (t *Table) wakeMatching(key Key, n int, match func(*waiter) bool) int {
	idx := bucketIndex(key)
	b := &t.buckets[idx]

	b.mu.Lock()
	var kept, toWake []*waiter
	for _, w := range b.items {
		if len(toWake) < n && w.key == key && match(w) {
			toWake = append(toWake, w)
			continue
		}
		kept = append(kept, w)
	}
	b.items = kept
	b.mu.Unlock()

	for _, w := range toWake {
		w.woken = true
		w.queued = false
		w.wake()
	}
	return len(toWake)
}

// Requeue wakes up to nWake waiters from keyA's bucket, then moves up to
// nReq of the remaining keyA waiters onto keyB's bucket (rewriting their
// key), per spec.md 4.10: "wake then move". Grounded on
// os/src/futex/futex.rs's futex_requeue, which performs the exact same
// wake-then-move order rather than moving first.
func (t *Table) Requeue(keyA Key, nWake int, keyB Key, nReq int) (woken, moved int) {
	woken = t.Wake(keyA, nWake)

	idxA := bucketIndex(keyA)
	idxB := bucketIndex(keyB)
	bA := &t.buckets[idxA]

	bA.mu.Lock()
	var remaining []*waiter
	var toMove []*waiter
	for _, w := range bA.items {
		if w.key == keyA && moved < nReq {
			toMove = append(toMove, w)
			moved++
			continue
		}
		remaining = append(remaining, w)
	}
	bA.items = remaining
	bA.mu.Unlock()

	for _, w := range toMove {
		w.key = keyB
	}
	if len(toMove) > 0 {
		bB := &t.buckets[idxB]
		bB.mu.Lock()
		bB.items = append(bB.items, toMove...)
		bB.mu.Unlock()
	}
	return woken, moved
}

// WaitFuture cooperatively blocks a futex_wait caller (spec.md 4.10's
// wait(): enqueue, then yield; on resume check deadline/signal/wake).
// It implements executor.Future's Poll(wake) shape directly (same
// interface, no import needed since Go structural typing only requires
// the method). The futex syscall handler parks it on the calling thread
// (wrapped in a blocker, via Thread.SetBlocking), and trap.Gate.Step
// polls it again on each later step until it completes.
type WaitFuture struct {
	tbl           *Table
	key           Key
	bitset        uint32
	deadline      *uint64
	now           func() uint64
	hasPendingSig func() bool

	entry   *Waiter
	Err     error
}

func NewWaitFuture(tbl *Table, key Key, bitset uint32, deadline *uint64, now func() uint64, hasPendingSig func() bool) *WaitFuture {
	return &WaitFuture{tbl: tbl, key: key, bitset: bitset, deadline: deadline, now: now, hasPendingSig: hasPendingSig}
}

func (f *WaitFuture) Poll(wake func()) bool {
	if f.entry == nil {
		f.entry = f.tbl.Enqueue(f.key, f.bitset, wake)
		wake()
		return false
	}
	if f.entry.Woken() {
		return true
	}
	if f.deadline != nil && f.now() >= *f.deadline {
		f.entry.Remove()
		f.Err = errno.ETIMEDOUT
		return true
	}
	if f.hasPendingSig != nil && f.hasPendingSig() {
		f.entry.Remove()
		f.Err = errno.EINTR
		return true
	}
	wake()
	return false
}
