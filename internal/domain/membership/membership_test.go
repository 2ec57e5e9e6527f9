package membership

import (
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestIndex_ClaimRelease(t *testing.T) {
	Convey("Given an empty index", t, func() {
		x := NewIndex(WithCapacity(16))

		Convey("When a competitor is claimed into a slot", func() {
			ok := x.Claim(1, Slot(11))

			Convey("Then it is recorded once", func() {
				So(ok, ShouldBeTrue)
				So(x.Size(), ShouldEqual, 1)
				slot, found := x.Slot(1)
				So(found, ShouldBeTrue)
				So(slot, ShouldEqual, Slot(11))
			})

			Convey("And a second claim in any slot is refused", func() {
				So(x.Claim(1, Slot(11)), ShouldBeFalse)
				So(x.Claim(1, General), ShouldBeFalse)
				So(x.Size(), ShouldEqual, 1)
			})

			Convey("And release returns the slot", func() {
				slot, found := x.Release(1)
				So(found, ShouldBeTrue)
				So(slot, ShouldEqual, Slot(11))
				So(x.Size(), ShouldEqual, 0)

				_, found = x.Release(1)
				So(found, ShouldBeFalse)
			})
		})

		Convey("When reset", func() {
			x.Claim(1, General)
			x.Claim(2, Slot(9))
			x.Reset()

			Convey("Then everything is forgotten", func() {
				So(x.Size(), ShouldEqual, 0)
				_, found := x.Slot(2)
				So(found, ShouldBeFalse)
			})
		})
	})
}

func TestIndex_ConcurrentClaims(t *testing.T) {
	Convey("Given many goroutines claiming the same id", t, func() {
		x := NewIndex()
		const goroutines = 64

		var wg sync.WaitGroup
		var mu sync.Mutex
		wins := 0
		for i := 0; i < goroutines; i++ {
			wg.Add(1)
			go func(slot int) {
				defer wg.Done()
				if x.Claim(42, Slot(slot)) {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()

		Convey("Then exactly one claim succeeds", func() {
			So(wins, ShouldEqual, 1)
			So(x.Size(), ShouldEqual, 1)
		})
	})
}
