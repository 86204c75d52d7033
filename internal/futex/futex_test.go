package futex

import (
	"arona/internal/errno"
	"testing"
)

func TestTableWakeWakesUpToN(t *testing.T) {
	tbl := New()
	key := Key{Which: 1, Page: 0x1000, Offset: 0}

	var woken [3]bool
	for i := range woken {
		i := i
		tbl.Enqueue(key, 0xffffffff, func() { woken[i] = true })
	}

	n := tbl.Wake(key, 2)
	if n != 2 {
		t.Fatalf("expected 2 woken, got %d", n)
	}
	count := 0
	for _, w := range woken {
		if w {
			count++
		}
	}
	if count != 2 {
		t.Fatalf("expected exactly 2 wake closures called, got %d", count)
	}

	// The remaining waiter is still queued and wakes on a second call.
	if n := tbl.Wake(key, 2); n != 1 {
		t.Fatalf("expected the last waiter to wake on the second call, got %d", n)
	}
}

func TestTableWakeOnlyMatchingKey(t *testing.T) {
	tbl := New()
	keyA := Key{Which: 1, Page: 0x1000}
	keyB := Key{Which: 1, Page: 0x2000}

	var wokeA, wokeB bool
	tbl.Enqueue(keyA, 0xffffffff, func() { wokeA = true })
	tbl.Enqueue(keyB, 0xffffffff, func() { wokeB = true })

	if n := tbl.Wake(keyA, 1); n != 1 {
		t.Fatalf("expected 1 woken, got %d", n)
	}
	if !wokeA || wokeB {
		t.Fatalf("expected only the matching key's waiter to wake")
	}
}

func TestTableWakeBitsetFiltersByMask(t *testing.T) {
	tbl := New()
	key := Key{Which: 1, Page: 0x3000}

	var wokeA, wokeB bool
	tbl.Enqueue(key, 0b0001, func() { wokeA = true })
	tbl.Enqueue(key, 0b0010, func() { wokeB = true })

	n := tbl.WakeBitset(key, 10, 0b0010)
	if n != 1 {
		t.Fatalf("expected 1 woken by bitset, got %d", n)
	}
	if wokeA || !wokeB {
		t.Fatalf("expected only the bitset-matching waiter to wake")
	}
}

func TestTableRequeueWakesThenMoves(t *testing.T) {
	tbl := New()
	keyA := Key{Which: 1, Page: 0x1000}
	keyB := Key{Which: 1, Page: 0x2000}

	var woken [4]bool
	for i := range woken {
		i := i
		tbl.Enqueue(keyA, 0xffffffff, func() { woken[i] = true })
	}

	wokeN, movedN := tbl.Requeue(keyA, 1, keyB, 2)
	if wokeN != 1 {
		t.Fatalf("expected 1 woken, got %d", wokeN)
	}
	if movedN != 2 {
		t.Fatalf("expected 2 moved, got %d", movedN)
	}

	// 4 waiters total: 1 woken directly, 2 moved to keyB, 1 left behind on keyA.
	if n := tbl.Wake(keyA, 10); n != 1 {
		t.Fatalf("expected 1 waiter left behind on keyA, got %d woken", n)
	}
	if n := tbl.Wake(keyB, 10); n != 2 {
		t.Fatalf("expected the 2 moved waiters on keyB, got %d", n)
	}
}

func TestWaitFutureWakesOnMatchingWake(t *testing.T) {
	tbl := New()
	key := Key{Which: 1, Page: 0x4000}

	var scheduled bool
	wakeFn := func() { scheduled = true }

	fut := NewWaitFuture(tbl, key, 0xffffffff, nil, func() uint64 { return 0 }, nil)
	if fut.Poll(wakeFn) {
		t.Fatalf("expected first Poll (enqueue) to return false")
	}
	if !scheduled {
		t.Fatalf("expected the first Poll to self-schedule a re-poll")
	}
	scheduled = false

	if fut.Poll(wakeFn) {
		t.Fatalf("expected Poll to still return false before any Wake")
	}

	tbl.Wake(key, 1)
	if !fut.Poll(wakeFn) {
		t.Fatalf("expected Poll to return true once woken")
	}
	if fut.Err != nil {
		t.Fatalf("expected no error on a normal wake, got %v", fut.Err)
	}
}

func TestWaitFutureTimesOut(t *testing.T) {
	tbl := New()
	key := Key{Which: 1, Page: 0x5000}
	deadline := uint64(100)
	now := uint64(50)

	fut := NewWaitFuture(tbl, key, 0xffffffff, &deadline, func() uint64 { return now }, nil)
	fut.Poll(func() {})

	now = 150
	if !fut.Poll(func() {}) {
		t.Fatalf("expected Poll to return true once the deadline passes")
	}
	if fut.Err != errno.ETIMEDOUT {
		t.Fatalf("expected ETIMEDOUT, got %v", fut.Err)
	}
}

func TestWaitFutureInterruptedBySignal(t *testing.T) {
	tbl := New()
	key := Key{Which: 1, Page: 0x6000}
	pending := false

	fut := NewWaitFuture(tbl, key, 0xffffffff, nil, func() uint64 { return 0 }, func() bool { return pending })
	fut.Poll(func() {})

	pending = true
	if !fut.Poll(func() {}) {
		t.Fatalf("expected Poll to return true once a signal is pending")
	}
	if fut.Err != errno.EINTR {
		t.Fatalf("expected EINTR, got %v", fut.Err)
	}
}

func TestBucketIndexDistributesAcrossKeys(t *testing.T) {
	seen := map[uint32]bool{}
	for page := uint64(0); page < 64; page++ {
		idx := bucketIndex(Key{Which: 1, Page: page * PageSizeStride})
		seen[idx] = true
	}
	if len(seen) < 8 {
		t.Fatalf("expected the hash to spread 64 distinct keys across more than a handful of buckets, got %d", len(seen))
	}
}

// PageSizeStride is an arbitrary stride distinct enough to exercise the
// hash's mixing across varied inputs without depending on mm.PageSize.
const PageSizeStride = 4096
