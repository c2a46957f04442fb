package stats

import (
	"context"
	"image"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedRegion blocks its first row until released, so a test can hold a
// scan in flight.
type gatedRegion struct {
	rectRegion
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedRegion(r image.Rectangle) *gatedRegion {
	return &gatedRegion{rectRegion: rectRegion(r), started: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedRegion) ContainsPixel(x, y int) bool {
	g.once.Do(func() {
		close(g.started)
		<-g.release
	})
	return g.rectRegion.ContainsPixel(x, y)
}

func TestWorkerPool_Submit(t *testing.T) {
	pool := NewWorkerPool(3)
	pool.Start()
	defer pool.Close()

	var counter atomic.Int32
	for i := 0; i < 20; i++ {
		pool.Submit(func() { counter.Add(1) })
	}
	pool.Wait()
	assert.Equal(t, int32(20), counter.Load())
}

func TestWorkerPool_DefaultWorkers(t *testing.T) {
	pool := NewWorkerPool(0)
	assert.Positive(t, pool.Workers())
	pool.Start()
	pool.Start()
	pool.Close()
	pool.Close()
}

func TestComputeAll(t *testing.T) {
	raster := uniform(image.Rect(0, 0, 10, 10), 3)
	jobs := []Job{
		{Raster: raster, Region: rectRegion(image.Rect(0, 0, 2, 2)), Options: DefaultOptions()},
		{Raster: raster, Region: rectRegion(image.Rect(0, 0, 5, 5)), Options: DefaultOptions()},
		{Raster: raster, Region: rectRegion(image.Rect(50, 50, 60, 60)), Options: DefaultOptions()},
	}

	results, err := ComputeAll(context.Background(), jobs, 2)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, 4, results[0].Samples)
	assert.Equal(t, 25, results[1].Samples)
	assert.Nil(t, results[2])
}

func TestComputeAll_Error(t *testing.T) {
	raster := uniform(image.Rect(0, 0, 10, 10), 3)
	jobs := []Job{
		{Raster: raster, Region: rectRegion(image.Rect(0, 0, 2, 2)), Options: DefaultOptions()},
		{Raster: raster, Region: rectRegion(image.Rect(0, 0, 2, 2)), Options: Options{}},
	}
	_, err := ComputeAll(context.Background(), jobs, 0)
	assert.Error(t, err)
}

func TestScheduler_LastSubmissionWins(t *testing.T) {
	raster := uniform(image.Rect(0, 0, 10, 10), 7)

	var mu sync.Mutex
	var got []Outcome
	done := func(o Outcome) {
		mu.Lock()
		got = append(got, o)
		mu.Unlock()
	}
	s := NewScheduler(NewWorkerPool(2))
	defer s.Close()

	slow := newGatedRegion(image.Rect(0, 0, 10, 10))
	first := s.Submit(context.Background(), "shape-1", Job{Raster: raster, Region: slow, Options: DefaultOptions()}, done)
	<-slow.started

	second := s.Submit(context.Background(), "shape-1", Job{Raster: raster, Region: rectRegion(image.Rect(0, 0, 3, 3)), Options: DefaultOptions()}, done)
	close(slow.release)
	s.Wait()

	assert.Greater(t, second, first)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, second, got[0].Generation)
	require.NoError(t, got[0].Err)
	assert.Equal(t, 9, got[0].Result.Samples)
}

func TestScheduler_IndependentKeys(t *testing.T) {
	raster := uniform(image.Rect(0, 0, 10, 10), 7)

	var mu sync.Mutex
	got := map[string]int{}
	done := func(o Outcome) {
		mu.Lock()
		got[o.Key] = o.Result.Samples
		mu.Unlock()
	}
	s := NewScheduler(NewWorkerPool(2))
	defer s.Close()

	s.Submit(context.Background(), "a", Job{Raster: raster, Region: rectRegion(image.Rect(0, 0, 1, 1)), Options: DefaultOptions()}, done)
	s.Submit(context.Background(), "b", Job{Raster: raster, Region: rectRegion(image.Rect(0, 0, 2, 2)), Options: DefaultOptions()}, done)
	s.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, map[string]int{"a": 1, "b": 4}, got)
}

func TestScheduler_CancelDropsOutcome(t *testing.T) {
	raster := uniform(image.Rect(0, 0, 10, 10), 7)

	var delivered atomic.Int32
	done := func(Outcome) { delivered.Add(1) }
	s := NewScheduler(NewWorkerPool(1))
	defer s.Close()

	slow := newGatedRegion(image.Rect(0, 0, 10, 10))
	s.Submit(context.Background(), "k", Job{Raster: raster, Region: slow, Options: DefaultOptions()}, done)
	<-slow.started
	s.Cancel("k")
	close(slow.release)
	s.Wait()

	assert.Equal(t, int32(0), delivered.Load())
}

func TestScheduler_SubmitAfterClose(t *testing.T) {
	s := NewScheduler(NewWorkerPool(1))
	s.Close()
	s.Close()
	gen := s.Submit(context.Background(), "k", Job{}, func(Outcome) {})
	assert.Equal(t, uint64(0), gen)
}
