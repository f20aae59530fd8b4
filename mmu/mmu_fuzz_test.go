package mmu

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func FuzzMmu(f *testing.F) {
	f.Add([]byte{4, 4, 0x80, 4})
	f.Add([]byte{1, 2, 3, 0x81, 0x80, 7})
	f.Add([]byte{0xff, 0x10, 0x00})

	f.Fuzz(func(t *testing.T, ops []byte) {
		assert := assert.New(t)

		type block struct{ start, size int }

		mmu := NewMmu(32)
		var live []block

		for _, op := range ops {
			if op&0x80 != 0 {
				if len(live) == 0 {
					continue
				}
				n := int(op&0x7f) % len(live)
				b := live[n]
				live = append(live[:n], live[n+1:]...)
				assert.NoError(mmu.Deallocate(b.start, b.size))
				continue
			}

			size := int(op & 0x3f)
			before, free := snapshot(mmu)
			start, err := mmu.Allocate(size)
			switch {
			case err == nil:
				if size > 0 {
					live = append(live, block{start, size})
				}
			case errors.Is(err, ErrOutOfMemory):
				assert.Less(free, size)
			case errors.Is(err, ErrAllocationFailed):
				assert.GreaterOrEqual(free, size)
				after, _ := snapshot(mmu)
				assert.Equal(before, after)
			default:
				t.Fatalf("unexpected error %v", err)
			}

			total := 0
			for _, b := range live {
				total += b.size
			}
			assert.Equal(mmu.Capacity(), mmu.Free()+total)
		}
	})
}
