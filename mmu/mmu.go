package mmu

import (
	"fmt"
	"iter"
	"log"
	"maps"
	"strings"
	"sync"
)

const (
	MMU_DEFAULT_SIZE = 1024 // Default address space, in bytes.
)

// Mmu is a first-fit allocator over a fixed size address space.
type Mmu struct {
	Verbose bool // Set to enable verbose logging.

	mutex    sync.Mutex
	occupied []bool // Allocation flag per address.
	data     []byte // Contents per address.
	free     int    // Count of unoccupied addresses.
}

// NewMmu creates an MMU managing capacity bytes, all free.
func NewMmu(capacity int) (mmu *Mmu) {
	if capacity < 0 {
		capacity = 0
	}

	mmu = &Mmu{
		occupied: make([]bool, capacity),
		data:     make([]byte, capacity),
		free:     capacity,
	}

	return
}

// Defines for the MMU.
func (mmu *Mmu) Defines() iter.Seq2[string, string] {
	return maps.All(map[string]string{
		"MMU_SIZE": fmt.Sprintf("%d", mmu.Capacity()),
	})
}

// Capacity returns the size of the address space.
func (mmu *Mmu) Capacity() int {
	return len(mmu.occupied)
}

// Free returns the number of unallocated bytes.
func (mmu *Mmu) Free() int {
	mmu.mutex.Lock()
	defer mmu.mutex.Unlock()

	return mmu.free
}

// Allocated reports if addr is currently allocated.
// Addresses outside of the address space are never allocated.
func (mmu *Mmu) Allocated(addr int) bool {
	mmu.mutex.Lock()
	defer mmu.mutex.Unlock()

	if addr < 0 || addr >= len(mmu.occupied) {
		return false
	}

	return mmu.occupied[addr]
}

// Reset frees the whole address space and zeros its contents.
func (mmu *Mmu) Reset() {
	mmu.mutex.Lock()
	defer mmu.mutex.Unlock()

	clear(mmu.occupied)
	clear(mmu.data)
	mmu.free = len(mmu.occupied)
}

// inBounds checks that [start, start+size) lies within the address space.
func (mmu *Mmu) inBounds(start, size int) bool {
	return start >= 0 && size >= 0 && start <= len(mmu.occupied) && size <= len(mmu.occupied)-start
}

// Allocate reserves size contiguous bytes, returning the lowest start
// address at which they fit.
//
// A zero size request reserves nothing and returns address 0.
func (mmu *Mmu) Allocate(size int) (start int, err error) {
	mmu.mutex.Lock()
	defer mmu.mutex.Unlock()

	defer func() {
		if err != nil {
			err = &ErrRange{Start: start, Size: size, Err: err}
		}
		if mmu.Verbose {
			log.Printf("mmu: allocate %d => 0x%x (%v)", size, start, err)
		}
	}()

	switch {
	case size < 0:
		err = ErrOutOfBounds
		return
	case size == 0:
		return
	case size > mmu.free:
		err = ErrOutOfMemory
		return
	}

	run := 0
	for addr, used := range mmu.occupied {
		if used {
			run = 0
			continue
		}
		run++
		if run == size {
			start = addr - size + 1
			for n := start; n <= addr; n++ {
				mmu.occupied[n] = true
			}
			mmu.free -= size
			return
		}
	}

	err = ErrAllocationFailed
	return
}

// Deallocate releases [start, start+size). Every address in the range
// must be allocated; the range is checked in full before anything is freed.
func (mmu *Mmu) Deallocate(start, size int) (err error) {
	mmu.mutex.Lock()
	defer mmu.mutex.Unlock()

	defer func() {
		if err != nil {
			err = &ErrRange{Start: start, Size: size, Err: err}
		}
		if mmu.Verbose {
			log.Printf("mmu: deallocate 0x%x+%d (%v)", start, size, err)
		}
	}()

	if !mmu.inBounds(start, size) {
		err = ErrOutOfBounds
		return
	}

	for _, used := range mmu.occupied[start : start+size] {
		if !used {
			err = ErrDoubleFree
			return
		}
	}

	clear(mmu.occupied[start : start+size])
	clear(mmu.data[start : start+size])
	mmu.free += size

	return
}

// checkAllocated validates that a content access is in bounds and allocated.
func (mmu *Mmu) checkAllocated(start, size int) (err error) {
	if !mmu.inBounds(start, size) {
		err = ErrOutOfBounds
		return
	}

	for _, used := range mmu.occupied[start : start+size] {
		if !used {
			err = ErrUnallocated
			return
		}
	}

	return
}

// Write copies data into the contents of an allocated range.
func (mmu *Mmu) Write(start int, data []byte) (err error) {
	mmu.mutex.Lock()
	defer mmu.mutex.Unlock()

	err = mmu.checkAllocated(start, len(data))
	if err != nil {
		err = &ErrRange{Start: start, Size: len(data), Err: err}
		return
	}

	copy(mmu.data[start:], data)

	return
}

// Read copies the contents of an allocated range into data.
func (mmu *Mmu) Read(start int, data []byte) (err error) {
	mmu.mutex.Lock()
	defer mmu.mutex.Unlock()

	err = mmu.checkAllocated(start, len(data))
	if err != nil {
		err = &ErrRange{Start: start, Size: len(data), Err: err}
		return
	}

	copy(data, mmu.data[start:start+len(data)])

	return
}

// Regions iterates over the maximal allocated runs, in address order,
// yielding the start and size of each.
//
// Adjacent allocations are reported as a single run.
func (mmu *Mmu) Regions() iter.Seq2[int, int] {
	return func(yield func(start, size int) bool) {
		mmu.mutex.Lock()
		runs := [][2]int{}
		start := -1
		for addr, used := range mmu.occupied {
			switch {
			case used && start < 0:
				start = addr
			case !used && start >= 0:
				runs = append(runs, [2]int{start, addr - start})
				start = -1
			}
		}
		if start >= 0 {
			runs = append(runs, [2]int{start, len(mmu.occupied) - start})
		}
		mmu.mutex.Unlock()

		for _, run := range runs {
			if !yield(run[0], run[1]) {
				return
			}
		}
	}
}

// String returns a summary of the allocation state.
func (mmu *Mmu) String() string {
	var text strings.Builder

	text.WriteString(fmt.Sprintf("mmu: %d/%d free\n", mmu.Free(), mmu.Capacity()))
	for start, size := range mmu.Regions() {
		text.WriteString(fmt.Sprintf("  %04X-%04X (%d)\n", start, start+size-1, size))
	}

	return text.String()
}
