package pool

import (
	"sync"
	"sync/atomic"
)

// BufferPool hands out fixed-size buffers that back tool output capture.
// Pre-allocates buffers so concurrent jobs do not churn the GC.
type BufferPool struct {
	pool      sync.Pool
	size      int
	allocated int32
	inUse     int32
	hits      int64
	misses    int64
}

// NewBufferPool creates a new buffer pool with pre-allocated buffers
func NewBufferPool(count, size int) *BufferPool {
	if size <= 0 {
		size = 32 * 1024
	}
	bp := &BufferPool{size: size}

	bp.pool = sync.Pool{
		New: func() interface{} {
			atomic.AddInt32(&bp.allocated, 1)
			atomic.AddInt64(&bp.misses, 1)
			buf := make([]byte, size)
			return &buf
		},
	}

	for i := 0; i < count; i++ {
		buf := make([]byte, size)
		atomic.AddInt32(&bp.allocated, 1)
		bp.pool.Put(&buf)
	}

	return bp
}

// Get retrieves a buffer from the pool
func (bp *BufferPool) Get() *[]byte {
	atomic.AddInt32(&bp.inUse, 1)
	atomic.AddInt64(&bp.hits, 1)
	return bp.pool.Get().(*[]byte)
}

// Put returns a buffer to the pool for reuse
func (bp *BufferPool) Put(buf *[]byte) {
	if buf == nil || cap(*buf) < bp.size {
		return
	}
	*buf = (*buf)[:bp.size]

	atomic.AddInt32(&bp.inUse, -1)
	bp.pool.Put(buf)
}

// NewTail returns a TailBuffer backed by a pooled buffer. Call Release when done.
func (bp *BufferPool) NewTail() *TailBuffer {
	buf := bp.Get()
	return &TailBuffer{owner: bp, backing: buf, data: (*buf)[:0]}
}

// TailBuffer is an io.Writer that keeps only the last cap bytes written to it.
// Not safe for concurrent writers.
type TailBuffer struct {
	owner     *BufferPool
	backing   *[]byte
	data      []byte
	truncated bool
}

// Write implements io.Writer. It never fails.
func (t *TailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	size := cap(t.data)
	if n >= size {
		t.data = append(t.data[:0], p[n-size:]...)
		t.truncated = true
		return n, nil
	}
	if over := len(t.data) + n - size; over > 0 {
		copy(t.data, t.data[over:])
		t.data = t.data[:len(t.data)-over]
		t.truncated = true
	}
	t.data = append(t.data, p...)
	return n, nil
}

// String returns the captured tail
func (t *TailBuffer) String() string {
	return string(t.data)
}

// Truncated reports whether earlier output was dropped
func (t *TailBuffer) Truncated() bool {
	return t.truncated
}

// Release hands the backing buffer back to the pool. The TailBuffer must not be used afterwards.
func (t *TailBuffer) Release() {
	if t.owner == nil || t.backing == nil {
		return
	}
	t.owner.Put(t.backing)
	t.backing = nil
	t.data = nil
}

// BufferPoolStats is a point-in-time view of the pool
type BufferPoolStats struct {
	Allocated int32
	InUse     int32
	Available int32
	Hits      int64
	Misses    int64
	HitRate   float64
}

// GetStats returns current statistics
func (bp *BufferPool) GetStats() BufferPoolStats {
	allocated := atomic.LoadInt32(&bp.allocated)
	inUse := atomic.LoadInt32(&bp.inUse)
	hits := atomic.LoadInt64(&bp.hits)
	misses := atomic.LoadInt64(&bp.misses)

	hitRate := 0.0
	if hits > 0 {
		hitRate = float64(hits-misses) / float64(hits) * 100
	}

	return BufferPoolStats{
		Allocated: allocated,
		InUse:     inUse,
		Available: allocated - inUse,
		Hits:      hits,
		Misses:    misses,
		HitRate:   hitRate,
	}
}
