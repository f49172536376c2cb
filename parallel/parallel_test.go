package parallel

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestPartitionMap(t *testing.T) {
	{ // Bucket sizes differ by at most one and cover the range
		getHisto := func(K, Np int) (histo map[int]int) {
			pm := NewPartitionMap(Np, K)
			histo = make(map[int]int)
			for np := 0; np < pm.NP; np++ {
				histo[pm.GetBucketDimension(np)]++
			}
			return
		}
		getTotal := func(histo map[int]int) (total int) {
			for key, count := range histo {
				total += key * count
			}
			return
		}
		assert.Equal(t, map[int]int{0: 30, 1: 2}, getHisto(2, 32))
		assert.Equal(t, map[int]int{8: 32}, getHisto(256, 32))
		assert.Equal(t, map[int]int{8: 1, 9: 31}, getHisto(287, 32))
		for n := 64; n < 2000; n++ {
			var (
				keys   [2]float64
				keyNum int
			)
			histo := getHisto(n, 32)
			for key := range histo {
				keys[keyNum] = float64(key)
				keyNum++
			}
			if keyNum == 2 {
				assert.Equal(t, 1., math.Abs(keys[0]-keys[1]))
			}
			assert.Equal(t, n, getTotal(histo))
		}
	}
	{ // Every index maps to its bucket and back
		for maxIndex := 10; maxIndex < 300; maxIndex++ {
			pm := NewPartitionMap(5, maxIndex)
			for k := 0; k < maxIndex; k++ {
				tryCount, bn, min, max := pm.getBucketWithTryCount(k)
				mmin, mmax := pm.GetBucketRange(bn)
				assert.True(t, k >= min && k < max && min == mmin && max == mmax && tryCount <= 1)
				local, lbn := pm.GetLocal(k)
				assert.Equal(t, k, pm.GetGlobal(local, lbn))
			}
			bn, _, _ := pm.GetBucket(maxIndex)
			assert.Equal(t, -1, bn)
		}
	}
}

func TestRunReductions(t *testing.T) {
	defer goleak.VerifyNone(t)
	const NP = 4
	sums := make([]float64, NP)
	maxs := make([]float64, NP)
	err := Run(context.Background(), NP, func(comm Comm) error {
		r := float64(comm.Rank())
		sums[comm.Rank()] = comm.AllReduceSum(r + 1)
		maxs[comm.Rank()] = comm.AllReduceMax(r)
		assert.Equal(t, 0., comm.AllReduceMin(r))
		comm.Barrier()
		return nil
	})
	assert.NoError(t, err)
	for n := 0; n < NP; n++ {
		assert.Equal(t, 10., sums[n])
		assert.Equal(t, 3., maxs[n])
	}
}

func TestRunExchange(t *testing.T) {
	defer goleak.VerifyNone(t)
	const NP = 3
	got := make([][]float64, NP)
	err := Run(context.Background(), NP, func(comm Comm) error {
		// ring exchange: send to right, receive from left
		right := (comm.Rank() + 1) % NP
		left := (comm.Rank() + NP - 1) % NP
		buf := []float64{float64(comm.Rank()), 10 * float64(comm.Rank())}
		comm.Send(right, buf)
		buf[0] = -1 // Send copies
		got[comm.Rank()] = comm.Recv(left)
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, []float64{2, 20}, got[0])
	assert.Equal(t, []float64{0, 0}, got[1])
	assert.Equal(t, []float64{1, 10}, got[2])
}

func TestRunAbort(t *testing.T) {
	defer goleak.VerifyNone(t)
	failure := errors.New("boom")
	err := Run(context.Background(), 3, func(comm Comm) error {
		if comm.Rank() == 1 {
			return failure
		}
		// The other ranks wait on a reduction that can never complete
		comm.AllReduceSum(1)
		return nil
	})
	assert.True(t, errors.Is(err, failure))

	err = Run(context.Background(), 2, func(comm Comm) error {
		if comm.Rank() == 0 {
			panic("bad index")
		}
		comm.Recv(0)
		return nil
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "bad index")
}

func TestRunCancel(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	go func() {
		<-started
		cancel()
	}()
	err := Run(ctx, 2, func(comm Comm) error {
		if comm.Master() {
			close(started)
		}
		// Nothing is ever sent, so only cancellation ends the wait
		comm.Recv(1 - comm.Rank())
		return nil
	})
	assert.True(t, errors.Is(err, ErrAborted))
	assert.True(t, errors.Is(err, context.Canceled))

	// A cancelled context runs nothing
	called := false
	err = Run(ctx, 1, func(comm Comm) error { called = true; return nil })
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, called)
}

func TestSerial(t *testing.T) {
	c := Serial()
	assert.Equal(t, 5., c.AllReduceSum(5))
	assert.False(t, c.Parallel())
	assert.True(t, c.Master())
	assert.Panics(t, func() { c.Send(1, nil) })
	called := false
	assert.NoError(t, Run(context.Background(), 1, func(comm Comm) error { called = !comm.Parallel(); return nil }))
	assert.True(t, called)
}
