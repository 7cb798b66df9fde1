package app

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/YLF-Cat/man-eating-tree-offline/internal/quiz"
	"github.com/YLF-Cat/man-eating-tree-offline/internal/roster"
)

// The one source handed to both services must serve both draw kinds.
var (
	_ roster.Rand = (*lockedRand)(nil)
	_ quiz.Rand   = (*lockedRand)(nil)
)

// Seed generation and a lottery action can draw at the same time; under the
// race detector this fails if the adapter stops serializing access.
func TestLockedRandConcurrentDraws(t *testing.T) {
	lr := &lockedRand{src: rand.New(rand.NewSource(1))}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 2000; j++ {
				if v := lr.Float64(); v < 0 || v >= 1 {
					t.Errorf("Float64() = %v outside [0,1)", v)
					return
				}
				if n := lr.Intn(90); n < 0 || n >= 90 {
					t.Errorf("Intn(90) = %d outside [0,90)", n)
					return
				}
			}
		}()
	}
	wg.Wait()
}
