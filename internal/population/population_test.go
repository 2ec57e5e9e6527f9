package population_test

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/okian/laddersim/internal/domain/competitor"
	"github.com/okian/laddersim/internal/population"
	. "github.com/smartystreets/goconvey/convey"
)

func TestGenerate(t *testing.T) {
	Convey("Given a uniform population spec", t, func() {
		spec := population.Spec{Count: 2000, Rating: 5000}

		Convey("When it is generated", func() {
			pop, err := population.Generate(rand.New(rand.NewSource(1)), spec)

			Convey("Then every competitor is valid with sequential ids", func() {
				So(err, ShouldBeNil)
				So(len(pop), ShouldEqual, 2000)

				towers := map[int]int{}
				for i, c := range pop {
					So(c.ID, ShouldEqual, i+1)
					So(c.Rating, ShouldEqual, 5000)
					So(c.Validate(), ShouldBeNil)
					lo, hi, _ := competitor.CardLevelRange(c.TowerTier)
					So(c.CardLevel, ShouldBeBetweenOrEqual, lo, hi)
					So(c.Skill, ShouldBeNil)
					So(c.AbsencePct, ShouldEqual, 0)
					towers[c.TowerTier]++
				}
				So(len(towers), ShouldEqual, 7)
			})
		})

		Convey("When the same seed is used twice", func() {
			a, _ := population.Generate(rand.New(rand.NewSource(9)), spec)
			b, _ := population.Generate(rand.New(rand.NewSource(9)), spec)

			Convey("Then the populations are identical", func() {
				for i := range a {
					So(*a[i], ShouldResemble, *b[i])
				}
			})
		})
	})

	Convey("Given a realistic population spec", t, func() {
		spec := population.Spec{
			Count:        5000,
			Rating:       5000,
			Distribution: "Gaussian",
			WithSkill:    true,
			WithAbsence:  true,
		}

		pop, err := population.Generate(rand.New(rand.NewSource(3)), spec)

		Convey("Then towers cluster around the middle tier", func() {
			So(err, ShouldBeNil)
			sum := 0
			for _, c := range pop {
				sum += c.TowerTier
			}
			mean := float64(sum) / float64(len(pop))
			So(mean, ShouldAlmostEqual, 11.0, 0.15)
		})

		Convey("Then skill and absence are set inside [0,1]", func() {
			for _, c := range pop {
				So(c.Skill, ShouldNotBeNil)
				So(*c.Skill, ShouldBeBetweenOrEqual, 0.0, 1.0)
				So(c.AbsencePct, ShouldBeBetweenOrEqual, 0.0, 1.0)
			}
		})
	})

	Convey("Given cap by tower", t, func() {
		pop, err := population.Generate(rand.New(rand.NewSource(5)), population.Spec{Count: 1000, Rating: 5000, CapByTower: true})

		Convey("Then no card level exceeds eight per tower tier", func() {
			So(err, ShouldBeNil)
			for _, c := range pop {
				So(c.CardLevel, ShouldBeLessThanOrEqualTo, 8*c.TowerTier)
			}
		})
	})

	Convey("Given invalid specs", t, func() {
		rng := rand.New(rand.NewSource(1))

		_, errCount := population.Generate(rng, population.Spec{Count: 1})
		_, errDist := population.Generate(rng, population.Spec{Count: 10, Distribution: "zipf"})

		Convey("Then generation fails with the matching error", func() {
			So(errors.Is(errCount, population.ErrInvalidCount), ShouldBeTrue)
			So(errors.Is(errDist, population.ErrUnknownDistribution), ShouldBeTrue)
		})
	})
}

func TestClone(t *testing.T) {
	Convey("Given a population", t, func() {
		pop, _ := population.Generate(rand.New(rand.NewSource(2)), population.Spec{Count: 10, Rating: 5000, WithSkill: true})

		Convey("When it is cloned and the clone mutated", func() {
			cp := population.Clone(pop)
			cp[0].Rating = 9000
			*cp[0].Skill = 0.99
			cp[1].Wins = 4

			Convey("Then the original is untouched", func() {
				So(len(cp), ShouldEqual, len(pop))
				So(pop[0].Rating, ShouldEqual, 5000)
				So(*pop[0].Skill, ShouldNotEqual, 0.99)
				So(pop[1].Wins, ShouldEqual, 0)
			})
		})
	})
}
