package ring

import (
	"math/rand"
	"testing"

	. "gopkg.in/check.v1"
)

// Hook up gocheck into the "go test" runner.
func Test(t *testing.T) { TestingT(t) }

type RingTestSuite struct{}

var _ = Suite(&RingTestSuite{})

func (*RingTestSuite) TestInvalidCapacity(c *C) {
	for _, capacity := range []int{0, -1, -100} {
		b, err := New[int](capacity)
		c.Assert(err, Equals, ErrInvalidCapacity)
		c.Assert(b, IsNil)
	}
}

func (*RingTestSuite) TestEmptyBufferHasLenZero(c *C) {
	b, err := New[int](16)
	c.Assert(err, IsNil)
	c.Assert(b.Len(), Equals, 0)
	c.Assert(b.Cap(), Equals, 16)
	c.Assert(b.IsEmpty(), Equals, true)
	c.Assert(b.IsFull(), Equals, false)
}

func (*RingTestSuite) TestPushReportsFreeSlots(c *C) {
	b, _ := New[int](16)
	c.Assert(b.Push(0), Equals, 15)
	c.Assert(b.Len(), Equals, 1)

	// Past capacity the buffer stays full and reports zero free slots.
	b, _ = New[int](8)
	var free, lens []int
	for i := 0; i < 10; i++ {
		free = append(free, b.Push(i))
		lens = append(lens, b.Len())
	}
	c.Assert(lens, DeepEquals, []int{1, 2, 3, 4, 5, 6, 7, 8, 8, 8})
	c.Assert(free, DeepEquals, []int{7, 6, 5, 4, 3, 2, 1, 0, 0, 0})
}

func (*RingTestSuite) TestCapacityOne(c *C) {
	b, _ := New[int](1)
	b.Push(4)
	c.Assert(b.Len(), Equals, 1)
	b.Push(5)
	c.Assert(b.Len(), Equals, 1)
	v, ok := b.Next()
	c.Assert(ok, Equals, true)
	c.Assert(v, Equals, 5)
}

func (*RingTestSuite) TestOverwriteEvictsOldest(c *C) {
	// capacity 3; push 1,2,3,4: the 1 is gone.
	b, _ := New[int](3)
	for i := 1; i <= 4; i++ {
		b.Push(i)
	}
	c.Assert(b.Len(), Equals, 3)
	c.Assert(b.IsFull(), Equals, true)

	var got []int
	for v, ok := b.Next(); ok; v, ok = b.Next() {
		got = append(got, v)
	}
	c.Assert(got, DeepEquals, []int{2, 3, 4})
	c.Assert(b.Len(), Equals, 0)
}

func (*RingTestSuite) TestDrainIsFIFO(c *C) {
	b, _ := New[int](3)
	b.Push(1)
	b.Push(2)
	b.Push(3)

	sum := 0
	for v, ok := b.Next(); ok; v, ok = b.Next() {
		sum += v
	}
	c.Assert(sum, Equals, 6)
	c.Assert(b.Len(), Equals, 0)

	// Exhausted; another step still reports empty.
	_, ok := b.Next()
	c.Assert(ok, Equals, false)
}

func (*RingTestSuite) TestDrainSeesLivePushes(c *C) {
	// The drain is incremental, not a snapshot: a push made between
	// steps shows up before exhaustion.
	b, _ := New[int](4)
	b.Push(1)
	v, ok := b.Next()
	c.Assert(ok, Equals, true)
	c.Assert(v, Equals, 1)
	b.Push(2)
	v, ok = b.Next()
	c.Assert(ok, Equals, true)
	c.Assert(v, Equals, 2)
	_, ok = b.Next()
	c.Assert(ok, Equals, false)
}

func (*RingTestSuite) TestFillBoundedByTargetRoom(c *C) {
	// capacity 5, full; target with room for 3 takes the 3 oldest.
	b, _ := New[int](5)
	for i := 1; i <= 5; i++ {
		b.Push(i)
	}
	v := make([]int, 0, 3)
	c.Assert(b.Fill(&v), Equals, 3)
	c.Assert(v, DeepEquals, []int{1, 2, 3})
	c.Assert(b.Len(), Equals, 2)

	// Drop the front of the target, refill the ring, fill again: only
	// one slot of room, so exactly one element moves.
	v = append(v[:0], v[1:]...)
	c.Assert(cap(v), Equals, 3)
	b.Push(6)
	b.Push(7)
	b.Push(8)
	c.Assert(b.Len(), Equals, 5)
	c.Assert(b.Fill(&v), Equals, 1)
	c.Assert(v, DeepEquals, []int{2, 3, 4})
	c.Assert(b.Len(), Equals, 4)
}

func (*RingTestSuite) TestFillBoundedBySource(c *C) {
	b, _ := New[int](2)
	b.Push(1)
	b.Push(2)
	b.Push(3)
	v := make([]int, 0, 4)
	c.Assert(b.Fill(&v), Equals, 2)
	c.Assert(v, DeepEquals, []int{2, 3})
	c.Assert(b.Len(), Equals, 0)
}

func (*RingTestSuite) TestFillNoop(c *C) {
	// No room in the target.
	b, _ := New[int](8)
	b.Push(10)
	v := make([]int, 0, 0)
	c.Assert(b.Fill(&v), Equals, 0)
	c.Assert(len(v), Equals, 0)
	c.Assert(b.Len(), Equals, 1)

	// Nothing in the ring.
	b, _ = New[int](8)
	v = make([]int, 0, 4)
	c.Assert(b.Fill(&v), Equals, 0)
	c.Assert(len(v), Equals, 0)
}

func (*RingTestSuite) TestFillNeverReallocates(c *C) {
	b, _ := New[int](10)
	for i := 0; i < 10; i++ {
		b.Push(i)
	}
	v := make([]int, 1, 4)
	v[0] = -1
	before := cap(v)
	c.Assert(b.Fill(&v), Equals, 3)
	c.Assert(cap(v), Equals, before)
	c.Assert(v, DeepEquals, []int{-1, 0, 1, 2})
	c.Assert(b.Len(), Equals, 7)
}

func (*RingTestSuite) TestPushAfterFullDrain(c *C) {
	b, _ := New[int](2)
	b.Push(1)
	b.Push(2)
	b.Push(3)
	v := make([]int, 0, 2)
	c.Assert(b.Fill(&v), Equals, 2)
	c.Assert(v, DeepEquals, []int{2, 3})
	c.Assert(b.Push(4), Equals, 1)
	c.Assert(b.Len(), Equals, 1)
}

func (*RingTestSuite) TestConsumedSlotsAreReleased(c *C) {
	s1, s2 := "one", "two"
	b, _ := New[*string](4)
	b.Push(&s1)
	b.Push(&s2)
	v, ok := b.Next()
	c.Assert(ok, Equals, true)
	c.Assert(v, Equals, &s1)
	// The vacated slot no longer pins the handed-out element.
	c.Assert(b.slots[0], IsNil)
	c.Assert(b.slots[1], NotNil)
}

func (*RingTestSuite) TestString(c *C) {
	b, _ := New[int](4)
	c.Assert(b.String(), Equals, "Buffer(<empty>)")
	b.Push(1)
	c.Assert(b.String(), Equals, "Buffer(1)")
	b.Push(2)
	b.Push(3)
	b.Push(4)
	c.Assert(b.String(), Equals, "Buffer(1, 2, 3, 4)")
	b.Push(5)
	c.Assert(b.String(), Equals, "Buffer(2, 3, 4, 5)")

	v := make([]int, 0, 2)
	b.Fill(&v)
	c.Assert(b.String(), Equals, "Buffer(4, 5)")
	v = make([]int, 0, 1)
	b.Fill(&v)
	c.Assert(b.String(), Equals, "Buffer(5)")
	v = make([]int, 0, 1)
	b.Fill(&v)
	c.Assert(b.String(), Equals, "Buffer(<empty>)")
}

// Randomized interleaving of pushes and fills checked against a plain
// slice that models the same retained window.
func (*RingTestSuite) TestLenAndValuesTrackReference(c *C) {
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 50; round++ {
		size := 1 + rng.Intn(25)
		b, err := New[int](size)
		c.Assert(err, IsNil)
		var model []int

		for step := 0; step < 100; step++ {
			toAdd := rng.Intn(10)
			for i := 0; i < toAdd; i++ {
				n := rng.Intn(1000)
				b.Push(n)
				model = append(model, n)
				if len(model) > size {
					model = model[1:]
				}
				c.Assert(b.Len(), Equals, len(model))
			}

			toRemove := rng.Intn(10)
			drained := make([]int, 0, toRemove)
			moved := b.Fill(&drained)
			want := toRemove
			if len(model) < want {
				want = len(model)
			}
			c.Assert(moved, Equals, want)
			c.Assert(drained, DeepEquals, append(make([]int, 0, toRemove), model[:want]...))
			model = model[want:]
			c.Assert(b.Len(), Equals, len(model))
		}
	}
}
