package matchmaking

import "errors"

// Configuration errors returned before any simulation state is touched.
var (
	ErrUnknownPolicy     = errors.New("unknown matchmaking policy")
	ErrMissingTierBound  = errors.New("tier-limited policy requires a tier bound")
	ErrNegativeTierBound = errors.New("tier bound must not be negative")
	ErrInvalidBand       = errors.New("rating band must not be negative")
)
