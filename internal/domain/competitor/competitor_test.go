package competitor_test

import (
	"errors"
	"testing"

	"github.com/okian/laddersim/internal/domain/competitor"
	. "github.com/smartystreets/goconvey/convey"
)

func TestCompetitor_New(t *testing.T) {
	Convey("Given competitor construction", t, func() {
		Convey("When all attributes are in range", func() {
			c, err := competitor.New(1, 5000, 11, 88, competitor.WithSkill(0.4), competitor.WithAbsence(0.2))

			Convey("Then it should be created", func() {
				So(err, ShouldBeNil)
				So(c.Power(), ShouldEqual, 99)
				So(*c.Skill, ShouldEqual, 0.4)
				So(c.AbsencePct, ShouldEqual, 0.2)
				So(c.Matches(), ShouldEqual, 0)
			})
		})

		Convey("When the tower tier is out of range", func() {
			_, err := competitor.New(1, 5000, 15, 88)

			Convey("Then it should fail with a configuration error", func() {
				So(errors.Is(err, competitor.ErrInvalidTowerTier), ShouldBeTrue)
			})
		})

		Convey("When the card level is out of range", func() {
			_, err := competitor.New(1, 5000, 11, 59)

			Convey("Then it should fail", func() {
				So(errors.Is(err, competitor.ErrInvalidCardLevel), ShouldBeTrue)
			})
		})

		Convey("When skill or absence is outside [0,1]", func() {
			_, errSkill := competitor.New(1, 5000, 11, 88, competitor.WithSkill(1.5))
			_, errAbsence := competitor.New(1, 5000, 11, 88, competitor.WithAbsence(-0.1))

			Convey("Then both should fail", func() {
				So(errors.Is(errSkill, competitor.ErrInvalidSkill), ShouldBeTrue)
				So(errors.Is(errAbsence, competitor.ErrInvalidAbsence), ShouldBeTrue)
			})
		})
	})
}

func TestCompetitor_MatchAllowed(t *testing.T) {
	Convey("Given two competitors", t, func() {
		a, _ := competitor.New(1, 5000, 11, 88)
		b, _ := competitor.New(2, 5040, 11, 88)

		Convey("Then a gap equal to the band is allowed", func() {
			So(competitor.MatchAllowed(a, b, competitor.DefaultRatingBand), ShouldBeTrue)
		})

		Convey("Then a gap above the band is rejected", func() {
			b.Rating = 5041
			So(competitor.MatchAllowed(a, b, competitor.DefaultRatingBand), ShouldBeFalse)
			So(competitor.MatchAllowed(b, a, competitor.DefaultRatingBand), ShouldBeFalse)
		})
	})
}

func TestCompetitor_Identity(t *testing.T) {
	Convey("Given two records with the same id", t, func() {
		a, _ := competitor.New(7, 5000, 9, 70)
		b, _ := competitor.New(7, 6000, 12, 100)

		Convey("Then they are equal regardless of attributes", func() {
			So(a.Equal(b), ShouldBeTrue)
			So(a.Equal(nil), ShouldBeFalse)
		})
	})
}

func TestCompetitor_CardLevelOverride(t *testing.T) {
	Convey("Given a competitor with card level 100", t, func() {
		c, _ := competitor.New(1, 5000, 13, 100)

		Convey("When the card level is capped for a match", func() {
			restore := c.OverrideCardLevel(72)

			Convey("Then the cap applies until restored", func() {
				So(c.CardLevel, ShouldEqual, 72)
				restore()
				So(c.CardLevel, ShouldEqual, 100)
			})
		})

		Convey("When the cap is above the card level", func() {
			restore := c.OverrideCardLevel(104)

			Convey("Then nothing changes", func() {
				So(c.CardLevel, ShouldEqual, 100)
				restore()
				So(c.CardLevel, ShouldEqual, 100)
			})
		})

		Convey("When capping by tower", func() {
			low, _ := competitor.New(2, 5000, 9, 80)
			low.CapByTower()

			Convey("Then the card level is limited to 8 per tower level", func() {
				So(low.CardLevel, ShouldEqual, 72)
			})
		})
	})
}

func TestCompetitor_CloneAndRanges(t *testing.T) {
	Convey("Given a competitor with skill", t, func() {
		c, _ := competitor.New(1, 5000, 11, 88, competitor.WithSkill(0.7))

		Convey("When cloned", func() {
			cp := c.Clone()
			*cp.Skill = 0.1
			cp.Rating = 6000

			Convey("Then the original is untouched", func() {
				So(*c.Skill, ShouldEqual, 0.7)
				So(c.Rating, ShouldEqual, 5000)
			})
		})

		Convey("Then card level ranges follow the tower tier", func() {
			lo, hi, err := competitor.CardLevelRange(8)
			So(err, ShouldBeNil)
			So(lo, ShouldEqual, 60)
			So(hi, ShouldEqual, 80)

			lo, hi, err = competitor.CardLevelRange(14)
			So(err, ShouldBeNil)
			So(lo, ShouldEqual, 104)
			So(hi, ShouldEqual, 112)

			_, _, err = competitor.CardLevelRange(7)
			So(errors.Is(err, competitor.ErrInvalidTowerTier), ShouldBeTrue)
		})
	})
}
