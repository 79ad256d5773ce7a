package scheduler

import (
	"math/rand/v2"

	"github.com/hazz-dev/pingwatch/internal/pingerr"
)

// Selector picks the endpoint to check in a cycle.
type Selector interface {
	Select(endpoints []string) (string, error)
}

// RandomSelector picks uniformly at random with replacement. It gives no
// fairness guarantee across cycles, only statistical coverage.
type RandomSelector struct {
	rng *rand.Rand
}

// NewRandomSelector returns a RandomSelector drawing from rng.
func NewRandomSelector(rng *rand.Rand) *RandomSelector {
	return &RandomSelector{rng: rng}
}

func (s *RandomSelector) Select(endpoints []string) (string, error) {
	if len(endpoints) == 0 {
		return "", pingerr.New(pingerr.ErrConfiguration, nil, "no endpoints to select from")
	}
	return endpoints[s.rng.IntN(len(endpoints))], nil
}
