// Package parallel models distributed-memory execution as in-process ranks.
// Each rank runs the same program on its own mesh partition and talks to the
// others only through a Comm: point-to-point messages that are FIFO per rank
// pair, and ordered global reductions.
package parallel

import (
	"context"
	"errors"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
)

// ErrAborted is reported by ranks that were blocked in communication when
// another rank failed.
var ErrAborted = errors.New("parallel run aborted")

type Comm interface {
	Rank() int
	Size() int
	// Parallel is true when there is more than one rank
	Parallel() bool
	Master() bool
	// Send queues a copy of data for rank to. It does not wait for the receiver.
	Send(to int, data []float64)
	// Recv blocks until the next message from rank from arrives
	Recv(from int) []float64
	AllReduceSum(v float64) float64
	AllReduceMax(v float64) float64
	AllReduceMin(v float64) float64
	Barrier()
}

type serial struct{}

// Serial returns the single-rank communicator
func Serial() Comm { return serial{} }

func (serial) Rank() int                      { return 0 }
func (serial) Size() int                      { return 1 }
func (serial) Parallel() bool                 { return false }
func (serial) Master() bool                   { return true }
func (serial) AllReduceSum(v float64) float64 { return v }
func (serial) AllReduceMax(v float64) float64 { return v }
func (serial) AllReduceMin(v float64) float64 { return v }
func (serial) Barrier()                       {}
func (serial) Send(to int, data []float64) {
	panic(fmt.Errorf("serial communicator cannot send to rank %d", to))
}
func (serial) Recv(from int) []float64 {
	panic(fmt.Errorf("serial communicator cannot receive from rank %d", from))
}

type abortSignal struct{}

const mailboxDepth = 64

// world is the set of mailboxes shared by all ranks of one run. Messages
// between a pair of ranks travel on their own channel, so program order on
// the sender is delivery order on the receiver. Collectives use a separate
// set of channels so they never interleave with point-to-point traffic.
type world struct {
	NP   int
	p2p  [][]chan []float64 // [from][to]
	coll [][]chan []float64 // [from][to]
	ctx  context.Context
}

func newWorld(ctx context.Context, NP int) *world {
	w := &world{
		NP:   NP,
		p2p:  make([][]chan []float64, NP),
		coll: make([][]chan []float64, NP),
		ctx:  ctx,
	}
	for n := 0; n < NP; n++ {
		w.p2p[n] = make([]chan []float64, NP)
		w.coll[n] = make([]chan []float64, NP)
		for m := 0; m < NP; m++ {
			w.p2p[n][m] = make(chan []float64, mailboxDepth)
			w.coll[n][m] = make(chan []float64, mailboxDepth)
		}
	}
	return w
}

func (w *world) post(ch chan []float64, data []float64) {
	msg := make([]float64, len(data))
	copy(msg, data)
	select {
	case ch <- msg:
	case <-w.ctx.Done():
		panic(abortSignal{})
	}
}

func (w *world) fetch(ch chan []float64) []float64 {
	select {
	case msg := <-ch:
		return msg
	case <-w.ctx.Done():
		panic(abortSignal{})
	}
}

type rankComm struct {
	w    *world
	rank int
}

func (c *rankComm) Rank() int      { return c.rank }
func (c *rankComm) Size() int      { return c.w.NP }
func (c *rankComm) Parallel() bool { return c.w.NP > 1 }
func (c *rankComm) Master() bool   { return c.rank == 0 }

func (c *rankComm) checkRank(r int) {
	if r < 0 || r >= c.w.NP || r == c.rank {
		panic(fmt.Errorf("rank %d: invalid peer rank %d of %d", c.rank, r, c.w.NP))
	}
}

func (c *rankComm) Send(to int, data []float64) {
	c.checkRank(to)
	c.w.post(c.w.p2p[c.rank][to], data)
}

func (c *rankComm) Recv(from int) []float64 {
	c.checkRank(from)
	return c.w.fetch(c.w.p2p[from][c.rank])
}

// reduce gathers one value per rank on the master, combines them in rank
// order and broadcasts the result, so every rank sees the identical value.
func (c *rankComm) reduce(v float64, op func(a, b float64) float64) float64 {
	var (
		w    = c.w
		root = 0
	)
	if c.rank != root {
		w.post(w.coll[c.rank][root], []float64{v})
		return w.fetch(w.coll[root][c.rank])[0]
	}
	acc := v
	for r := 1; r < w.NP; r++ {
		acc = op(acc, w.fetch(w.coll[r][root])[0])
	}
	for r := 1; r < w.NP; r++ {
		w.post(w.coll[root][r], []float64{acc})
	}
	return acc
}

func (c *rankComm) AllReduceSum(v float64) float64 {
	return c.reduce(v, func(a, b float64) float64 { return a + b })
}

func (c *rankComm) AllReduceMax(v float64) float64 { return c.reduce(v, math.Max) }

func (c *rankComm) AllReduceMin(v float64) float64 { return c.reduce(v, math.Min) }

func (c *rankComm) Barrier() { c.reduce(0, func(a, b float64) float64 { return a + b }) }

// Run executes fn on NP ranks and waits for all of them. The first error
// returned (or panic raised) by a rank cancels the run, as does cancelling
// ctx; ranks blocked in communication then return ErrAborted. With NP <= 1,
// fn runs on the serial communicator in the calling goroutine.
func Run(ctx context.Context, NP int, fn func(comm Comm) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if NP <= 1 {
		return fn(Serial())
	}
	g, gctx := errgroup.WithContext(ctx)
	w := newWorld(gctx, NP)
	for r := 0; r < NP; r++ {
		comm := &rankComm{w: w, rank: r}
		g.Go(func() (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					if _, ok := rec.(abortSignal); ok {
						err = ErrAborted
						return
					}
					err = fmt.Errorf("rank %d: %v", comm.rank, rec)
				}
			}()
			return fn(comm)
		})
	}
	err := g.Wait()
	if errors.Is(err, ErrAborted) && ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ErrAborted, ctx.Err())
	}
	return err
}
