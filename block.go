package socketout

import (
	"sync"
	"sync/atomic"
)

// BlockCapacity is the fixed capacity, in bytes, of a leased [Block].
const BlockCapacity = 2048

// Block is a fixed-capacity byte buffer leased from a [BlockPool]. The
// populated region is array[start:end]. A Block is owned transiently by at
// most one writeContext at a time; it must be pinned while referenced by an
// in-flight async I/O and unpinned exactly once before being returned to
// the pool.
type Block struct {
	array []byte
	start int
	end   int
	pins  int32
}

// Bytes returns the populated region of the block.
func (b *Block) Bytes() []byte { return b.array[b.start:b.end] }

// Len returns the number of populated bytes.
func (b *Block) Len() int { return b.end - b.start }

// Pin increments the block's pin count, preventing the pool from reclaiming
// it while an async I/O operation may still reference its backing array.
func (b *Block) Pin() { atomic.AddInt32(&b.pins, 1) }

// Unpin decrements the block's pin count. It panics if called more times
// than Pin, which would indicate a double-release bug.
func (b *Block) Unpin() {
	if atomic.AddInt32(&b.pins, -1) < 0 {
		panic("socketout: block unpinned more times than pinned")
	}
}

func (b *Block) pinned() bool { return atomic.LoadInt32(&b.pins) > 0 }

// BlockPool leases and reclaims fixed-capacity [Block] values. It is safe
// for concurrent use from any goroutine.
type BlockPool struct {
	pool        sync.Pool
	outstanding atomic.Int64
}

// NewBlockPool constructs an empty BlockPool.
func NewBlockPool() *BlockPool {
	p := &BlockPool{}
	p.pool.New = func() any {
		return &Block{array: make([]byte, BlockCapacity)}
	}
	return p
}

// Lease returns a pinned, empty Block ready to be filled by the caller.
func (p *BlockPool) Lease() *Block {
	b := p.pool.Get().(*Block)
	b.start = 0
	b.end = 0
	b.Pin()
	p.outstanding.Add(1)
	return b
}

// Return reclaims a Block for reuse. It panics if the block is still
// pinned, which would indicate an in-flight I/O operation may still
// reference it.
func (p *BlockPool) Return(b *Block) {
	if b.pinned() {
		panic("socketout: block returned to pool while still pinned")
	}
	b.start = 0
	b.end = 0
	p.pool.Put(b)
	p.outstanding.Add(-1)
}

// Outstanding reports the number of blocks currently leased but not yet
// returned. Useful for leak detection in tests and diagnostics; at
// quiescence this is 0.
func (p *BlockPool) Outstanding() int64 { return p.outstanding.Load() }

// copyIntoBlocks splits buf into ceil(len(buf)/BlockCapacity) pool-leased
// blocks, copying bytes in. An empty buffer yields zero blocks. This is
// deliberately allocation-light and lock-free, so callers can perform it
// before acquiring any shared-state mutex.
func copyIntoBlocks(pool *BlockPool, buf []byte) []*Block {
	if len(buf) == 0 {
		return nil
	}
	n := (len(buf) + BlockCapacity - 1) / BlockCapacity
	blocks := make([]*Block, 0, n)
	for len(buf) > 0 {
		b := pool.Lease()
		c := copy(b.array[:BlockCapacity], buf)
		b.end = c
		buf = buf[c:]
		blocks = append(blocks, b)
	}
	return blocks
}
