package dataset

import (
	"context"
	"math/rand"
	"sync"
)

// Batch is one host-side minibatch in [N,C,H,W] layout.
type Batch struct {
	N    int
	Data []float32
}

// Loader serves shuffled minibatches from a Set. A fixed pool of workers
// materializes batch buffers ahead of the consumer purely as a prefetch
// optimization; batches are still delivered exactly once per epoch, in the
// order the shuffle produced them.
type Loader struct {
	set       *Set
	batchSize int
	workers   int
	rng       *rand.Rand
}

// NewLoader builds a loader over set. The rng drives the per-epoch shuffle;
// a nil rng keeps the set order fixed.
func NewLoader(set *Set, batchSize, workers int, rng *rand.Rand) *Loader {
	if batchSize <= 0 {
		batchSize = 1
	}
	if workers <= 0 {
		workers = 1
	}
	return &Loader{set: set, batchSize: batchSize, workers: workers, rng: rng}
}

// Batches returns the number of batches per epoch, counting a trailing
// partial batch.
func (l *Loader) Batches() int {
	return (l.set.Len() + l.batchSize - 1) / l.batchSize
}

type batchJob struct {
	id      int
	indices []int
}

type builtBatch struct {
	id    int
	batch Batch
}

// Epoch shuffles the set and streams its batches. The channel closes after
// the last batch, or early when ctx is canceled.
func (l *Loader) Epoch(ctx context.Context) <-chan Batch {
	order := make([]int, l.set.Len())
	for i := range order {
		order[i] = i
	}
	if l.rng != nil {
		l.rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}

	jobs := make(chan batchJob, l.workers)
	built := make(chan builtBatch, l.workers)
	out := make(chan Batch, l.workers)

	go func() {
		defer close(jobs)
		id := 0
		for start := 0; start < len(order); start += l.batchSize {
			end := start + l.batchSize
			if end > len(order) {
				end = len(order)
			}
			select {
			case <-ctx.Done():
				return
			case jobs <- batchJob{id: id, indices: order[start:end]}:
				id++
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < l.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				select {
				case <-ctx.Done():
					return
				case built <- builtBatch{id: job.id, batch: l.assemble(job.indices)}:
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(built)
	}()

	// Workers finish out of order; replay their output in job order so the
	// consumer sees exactly the shuffle sequence.
	go func() {
		defer close(out)
		pending := make(map[int]Batch)
		next := 0
		for bb := range built {
			pending[bb.id] = bb.batch
			for {
				batch, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)
				select {
				case <-ctx.Done():
					return
				case out <- batch:
					next++
				}
			}
		}
	}()

	return out
}

func (l *Loader) assemble(indices []int) Batch {
	per := l.set.SampleSize()
	data := make([]float32, len(indices)*per)
	for i, idx := range indices {
		copy(data[i*per:(i+1)*per], l.set.At(idx))
	}
	return Batch{N: len(indices), Data: data}
}
