package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/okian/laddersim/internal/domain/competitor"
)

var csvHeader = []string{ //nolint:gochecknoglobals // fixed column layout
	"ID", "Rating", "Wins", "Losses", "TowerTier", "CardLevel", "TotalMismatch", "MismatchPerMatch",
}

// WriteCSV writes one row per competitor in population order.
func WriteCSV(w io.Writer, pop []*competitor.Competitor) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, c := range pop {
		row := []string{
			strconv.Itoa(c.ID),
			strconv.Itoa(c.Rating),
			strconv.Itoa(c.Wins),
			strconv.Itoa(c.Losses),
			strconv.Itoa(c.TowerTier),
			strconv.Itoa(c.CardLevel),
			strconv.Itoa(c.CumulativeMismatch),
			strconv.FormatFloat(c.MismatchPerMatch(), 'f', 4, 64),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write competitor %d: %w", c.ID, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
