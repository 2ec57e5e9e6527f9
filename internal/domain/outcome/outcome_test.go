package outcome_test

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/okian/laddersim/internal/domain/competitor"
	"github.com/okian/laddersim/internal/domain/outcome"
	. "github.com/smartystreets/goconvey/convey"
)

const testSeed = 42

// fixedRand returns the same draw every time.
type fixedRand float64

func (f fixedRand) Float64() float64 { return float64(f) }

func mustCompetitor(id, rating, tower, card int, opts ...competitor.Option) *competitor.Competitor {
	c, err := competitor.New(id, rating, tower, card, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

func mustModel(opts ...outcome.Option) *outcome.Model {
	m, err := outcome.NewModel(opts...)
	if err != nil {
		panic(err)
	}
	return m
}

func TestModel_New(t *testing.T) {
	Convey("Given model construction", t, func() {
		Convey("When gates are not ascending", func() {
			_, err := outcome.NewModel(outcome.WithGates([]int{5300, 5000}))

			Convey("Then it should fail with a configuration error", func() {
				So(errors.Is(err, outcome.ErrGatesNotAscending), ShouldBeTrue)
			})
		})

		Convey("When the divisor is zero", func() {
			_, err := outcome.NewModel(outcome.WithExchange(30, 0))

			Convey("Then it should fail", func() {
				So(errors.Is(err, outcome.ErrInvalidParams), ShouldBeTrue)
			})
		})

		Convey("When loss bands overlap", func() {
			_, err := outcome.NewModel(outcome.WithLossTable([]outcome.LossBand{
				{From: 5000, To: 6000, Percent: 0.5},
				{From: 5500, To: 6500, Percent: 0.5},
			}))

			Convey("Then it should fail", func() {
				So(errors.Is(err, outcome.ErrInvalidParams), ShouldBeTrue)
			})
		})

		Convey("When defaults are used", func() {
			m := mustModel()

			Convey("Then the floor and loss table are the defaults", func() {
				So(m.Floor(), ShouldEqual, outcome.DefaultFloor)
				So(m.LossPercent(4500), ShouldEqual, 1.0)
				So(m.LossPercent(5000), ShouldEqual, 0.7)
				So(m.LossPercent(5600), ShouldEqual, 0.8)
				So(m.LossPercent(6999), ShouldEqual, 0.9)
				So(m.LossPercent(7000), ShouldEqual, 1.0)
			})
		})
	})
}

func TestModel_OverlevelWinChance(t *testing.T) {
	Convey("Given the default model", t, func() {
		m := mustModel()

		Convey("Then the chance grows linearly with the power gap", func() {
			So(m.OverlevelWinChance(0), ShouldAlmostEqual, 0.521, 1e-9)
			So(m.OverlevelWinChance(20), ShouldAlmostEqual, 0.893, 1e-9)
			So(m.OverlevelWinChance(10), ShouldBeGreaterThan, m.OverlevelWinChance(9))
		})

		Convey("Then it saturates below one", func() {
			So(m.OverlevelWinChance(58), ShouldEqual, 0.99)
		})
	})
}

func TestModel_Exchange(t *testing.T) {
	Convey("Given the default model", t, func() {
		m := mustModel()

		Convey("Then equal ratings exchange the base amount", func() {
			So(m.Exchange(5000, 5000), ShouldEqual, 30)
		})

		Convey("Then an upset pays more", func() {
			So(m.Exchange(5000, 5024), ShouldEqual, 32)
		})

		Convey("Then beating a lower rated opponent pays less, rounded down", func() {
			So(m.Exchange(5010, 5000), ShouldEqual, 29)
			So(m.Exchange(5024, 5000), ShouldEqual, 28)
		})
	})
}

func TestModel_Resolve(t *testing.T) {
	Convey("Given two competitors with different power", t, func() {
		m := mustModel()
		strong := mustCompetitor(1, 5100, 12, 100)
		weak := mustCompetitor(2, 5100, 10, 90)

		Convey("When the draw favours the stronger side", func() {
			res, err := m.Resolve(weak, strong, fixedRand(0.1))

			Convey("Then the stronger side wins and both counters move once", func() {
				So(err, ShouldBeNil)
				So(res.Winner, ShouldEqual, strong)
				So(strong.Wins, ShouldEqual, 1)
				So(strong.Losses, ShouldEqual, 0)
				So(weak.Losses, ShouldEqual, 1)
				So(weak.Wins, ShouldEqual, 0)
				So(res.Mismatch, ShouldEqual, 12)
				So(strong.CumulativeMismatch, ShouldEqual, 12)
				So(weak.CumulativeMismatch, ShouldEqual, 12)
			})

			Convey("Then the winner gains the exchange and the loser keeps part of it", func() {
				So(res.Exchange, ShouldEqual, 30)
				So(strong.Rating, ShouldEqual, 5130)
				So(weak.Rating, ShouldEqual, 5100-21)
			})
		})

		Convey("When the draw is above the overlevel chance", func() {
			res, err := m.Resolve(strong, weak, fixedRand(0.99))

			Convey("Then the weaker side wins", func() {
				So(err, ShouldBeNil)
				So(res.Winner, ShouldEqual, weak)
				So(res.Loser, ShouldEqual, strong)
			})
		})
	})

	Convey("Given equal power and skill attributes", t, func() {
		m := mustModel()
		better := mustCompetitor(1, 5000, 11, 88, competitor.WithSkill(0.9))
		worse := mustCompetitor(2, 5000, 11, 88, competitor.WithSkill(0.4))

		Convey("When the draw is under the skill chance", func() {
			res, err := m.Resolve(worse, better, fixedRand(0.69))

			Convey("Then the more skilled side wins", func() {
				So(err, ShouldBeNil)
				So(res.Winner, ShouldEqual, better)
				So(res.Mismatch, ShouldEqual, 0)
			})
		})

		Convey("When the draw is over the skill chance", func() {
			res, err := m.Resolve(worse, better, fixedRand(0.71))

			Convey("Then the less skilled side wins", func() {
				So(err, ShouldBeNil)
				So(res.Winner, ShouldEqual, worse)
			})
		})
	})

	Convey("Given equal power and one missing skill", t, func() {
		m := mustModel()
		a := mustCompetitor(1, 5000, 11, 88, competitor.WithSkill(0.9))
		b := mustCompetitor(2, 5000, 11, 88)

		Convey("Then the coin flip decides", func() {
			res, err := m.Resolve(a, b, fixedRand(0.2))
			So(err, ShouldBeNil)
			So(res.Winner, ShouldEqual, a)

			res, err = m.Resolve(a, b, fixedRand(0.8))
			So(err, ShouldBeNil)
			So(res.Winner, ShouldEqual, b)
		})
	})

	Convey("Given the same competitor on both sides", t, func() {
		m := mustModel()
		a := mustCompetitor(1, 5000, 11, 88)
		twin := mustCompetitor(1, 5000, 11, 88)

		Convey("Then resolution is refused and nothing changes", func() {
			_, err := m.Resolve(a, twin, fixedRand(0.1))
			So(errors.Is(err, outcome.ErrSelfMatch), ShouldBeTrue)
			So(a.Matches(), ShouldEqual, 0)
			So(a.CumulativeMismatch, ShouldEqual, 0)
		})
	})
}

func TestModel_FloorAndGates(t *testing.T) {
	Convey("Given a loser at the floor", t, func() {
		m := mustModel()
		winner := mustCompetitor(1, 5000, 11, 88)
		loser := mustCompetitor(2, 5000, 11, 88)

		Convey("When the loser loses", func() {
			_, err := m.Resolve(winner, loser, fixedRand(0.1))

			Convey("Then the rating stays at the floor", func() {
				So(err, ShouldBeNil)
				So(loser.Rating, ShouldEqual, 5000)
				So(winner.Rating, ShouldEqual, 5030)
			})
		})
	})

	Convey("Given a gate at 5300", t, func() {
		m := mustModel(outcome.WithGates([]int{5000, 5300}))

		Convey("When a competitor at 5305 loses an exchange of 40", func() {
			// winner at 5185: 30 + floor(120/12) = 40
			winner := mustCompetitor(1, 5185, 11, 88)
			loser := mustCompetitor(2, 5305, 11, 88)
			res, err := m.Resolve(winner, loser, fixedRand(0.1))

			Convey("Then the loser is clamped to exactly the gate", func() {
				So(err, ShouldBeNil)
				So(res.Exchange, ShouldEqual, 40)
				So(res.GateClamped, ShouldBeTrue)
				So(loser.Rating, ShouldEqual, 5300)
				So(res.Loss, ShouldEqual, 5)
			})
		})

		Convey("When a competitor below the gate loses", func() {
			winner := mustCompetitor(1, 5290, 11, 88)
			loser := mustCompetitor(2, 5290, 11, 88)
			res, err := m.Resolve(winner, loser, fixedRand(0.1))

			Convey("Then the gate does not apply", func() {
				So(err, ShouldBeNil)
				So(res.GateClamped, ShouldBeFalse)
				So(loser.Rating, ShouldEqual, 5290-21)
			})
		})

		Convey("When the loss stays above the gate", func() {
			winner := mustCompetitor(1, 5400, 11, 88)
			loser := mustCompetitor(2, 5400, 11, 88)
			res, err := m.Resolve(winner, loser, fixedRand(0.1))

			Convey("Then the regular loss applies", func() {
				So(err, ShouldBeNil)
				So(res.GateClamped, ShouldBeFalse)
				So(loser.Rating, ShouldEqual, 5379)
			})
		})
	})
}

func TestModel_SeasonReset(t *testing.T) {
	Convey("Given the default season decay", t, func() {
		m := mustModel()

		Convey("Then the top band decays 30 percent and is capped", func() {
			So(m.DecayedRating(7200), ShouldEqual, 6540)
			So(m.DecayedRating(8000), ShouldEqual, 6600)
		})

		Convey("Then the middle bands decay 40 and 50 percent", func() {
			So(m.DecayedRating(6500), ShouldEqual, 5900)
			So(m.DecayedRating(6001), ShouldEqual, 5600)
			So(m.DecayedRating(5800), ShouldEqual, 5400)
			So(m.DecayedRating(5001), ShouldEqual, 5000)
		})

		Convey("Then ratings at or below the floor are unchanged", func() {
			So(m.DecayedRating(5000), ShouldEqual, 5000)
			So(m.DecayedRating(4800), ShouldEqual, 4800)
		})

		Convey("When resetting a competitor at 7200", func() {
			c := mustCompetitor(1, 7200, 14, 110)
			c.Wins = 10
			m.SeasonReset(c)

			Convey("Then only the rating changes", func() {
				So(c.Rating, ShouldEqual, 6540)
				So(c.Wins, ShouldEqual, 10)
			})
		})
	})
}

func TestCardCap(t *testing.T) {
	Convey("Given rating caps", t, func() {
		caps := []int{5300, 5600, 6000, 6300, 6600, 7000}

		Convey("Then the ceiling grows by eight per cap exceeded", func() {
			So(outcome.CardCap(caps, 5000), ShouldEqual, 64)
			So(outcome.CardCap(caps, 5300), ShouldEqual, 64)
			So(outcome.CardCap(caps, 5301), ShouldEqual, 72)
			So(outcome.CardCap(caps, 6500), ShouldEqual, 96)
			So(outcome.CardCap(caps, 9000), ShouldEqual, 112)
		})
	})
}

func TestModel_Scenarios(t *testing.T) {
	const matches = 10_000

	Convey("Given two equal-power competitors without skill", t, func() {
		m := mustModel()
		rng := rand.New(rand.NewSource(testSeed)) //nolint:gosec // deterministic seed for reproducible testing
		a := mustCompetitor(1, 5000, 11, 88)
		b := mustCompetitor(2, 5010, 11, 88)

		floorHeld := true
		for i := 0; i < matches; i++ {
			if _, err := m.Resolve(a, b, rng); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if a.Rating < m.Floor() || b.Rating < m.Floor() {
				floorHeld = false
			}
		}

		Convey("Then each wins close to half the matches", func() {
			So(a.Wins+b.Wins, ShouldEqual, matches)
			So(a.Matches(), ShouldEqual, matches)
			So(float64(a.Wins)/matches, ShouldAlmostEqual, 0.5, 0.03)
			So(floorHeld, ShouldBeTrue)
			So(a.CumulativeMismatch, ShouldEqual, 0)
		})
	})

	Convey("Given a competitor 20 power above the other", t, func() {
		m := mustModel()
		rng := rand.New(rand.NewSource(testSeed)) //nolint:gosec // deterministic seed for reproducible testing
		a := mustCompetitor(1, 5000, 12, 100)
		b := mustCompetitor(2, 5000, 10, 82)

		for i := 0; i < matches; i++ {
			if _, err := m.Resolve(a, b, rng); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}

		Convey("Then the stronger side wins near the overlevel chance", func() {
			rate := float64(a.Wins) / matches
			So(math.Abs(rate-0.893), ShouldBeLessThan, 0.02)
			So(a.CumulativeMismatch, ShouldEqual, 20*matches)
			So(b.CumulativeMismatch, ShouldEqual, a.CumulativeMismatch)
		})
	})
}
