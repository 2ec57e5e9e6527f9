package competitor

import "errors"

// Sentinel kinds for competitor construction errors.
var (
	ErrInvalidTowerTier = errors.New("tower tier out of range")
	ErrInvalidCardLevel = errors.New("card level out of range")
	ErrInvalidSkill     = errors.New("skill out of range")
	ErrInvalidAbsence   = errors.New("absence probability out of range")
)
