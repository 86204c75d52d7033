package mm

import "sync/atomic"

func atomicAdd(p *int32, delta int32) int32 {
	return atomic.AddInt32(p, delta)
}

func atomicLoad(p *int32) int32 {
	return atomic.LoadInt32(p)
}
