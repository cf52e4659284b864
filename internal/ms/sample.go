package ms

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat/distuv"
)

// Policy selects how leaf probabilities become building counts.
type Policy int

const (
	// RandomWalk draws each building independently from the leaf
	// distribution. Counts are integers summing exactly to the total.
	RandomWalk Policy = iota
	// Fraction assigns probability*total, unrounded.
	Fraction
	// FractionRounded assigns round(probability*total). The rounding
	// residual is not redistributed, so counts may not sum to the total.
	FractionRounded
)

func (p Policy) String() string {
	switch p {
	case RandomWalk:
		return "random-walk"
	case Fraction:
		return "fraction"
	case FractionRounded:
		return "fraction-rounded"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy parses a policy name such as "random-walk" or "Fraction".
func ParsePolicy(s string) (Policy, error) {
	norm := strings.ToLower(strings.NewReplacer("-", "", "_", "", " ", "").Replace(s))
	switch norm {
	case "randomwalk", "":
		return RandomWalk, nil
	case "fraction":
		return Fraction, nil
	case "fractionrounded":
		return FractionRounded, nil
	default:
		return 0, fmt.Errorf("unknown extrapolation policy %q", s)
	}
}

// Sample is the number of buildings assigned to one building type.
type Sample struct {
	Taxonomy string
	Count    float64
	AvgSize  float64
	AvgCost  float64
}

// Samples distributes total buildings across the leaves (with modifiers)
// according to policy. src seeds RandomWalk; nil uses a time-seeded
// source. RandomWalk checks ctx once per drawn building.
func (s *Statistics) Samples(ctx context.Context, total int, policy Policy, src rand.Source) ([]Sample, error) {
	if total < 0 {
		return nil, fmt.Errorf("negative building count %d", total)
	}
	leaves, err := s.Leaves(LeafOptions{WithModifiers: true})
	if err != nil {
		return nil, err
	}
	if len(leaves) == 0 {
		return nil, ErrNoLeaves
	}

	out := make([]Sample, len(leaves))
	for i, l := range leaves {
		out[i] = Sample{Taxonomy: l.Taxonomy, AvgSize: l.AvgSize, AvgCost: l.UnitCost}
	}

	switch policy {
	case Fraction:
		for i, l := range leaves {
			out[i].Count = l.Probability * float64(total)
		}
	case FractionRounded:
		for i, l := range leaves {
			out[i].Count = math.Round(l.Probability * float64(total))
		}
	case RandomWalk:
		counts, err := randomWalk(ctx, leaves, total, src)
		if err != nil {
			return nil, err
		}
		for i := range out {
			out[i].Count = float64(counts[i])
		}
	default:
		return nil, fmt.Errorf("unknown extrapolation policy %d", int(policy))
	}
	return out, nil
}

func randomWalk(ctx context.Context, leaves []Leaf, total int, src rand.Source) ([]int, error) {
	if src == nil {
		src = rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed)
	}
	weights := make([]float64, len(leaves))
	for i, l := range leaves {
		weights[i] = l.Probability
	}
	dist := distuv.NewCategorical(weights, src)

	done := ctx.Done()
	counts := make([]int, len(leaves))
	for i := 0; i < total; i++ {
		select {
		case <-done:
			return nil, ctx.Err()
		default:
		}
		counts[int(dist.Rand())]++
	}
	return counts, nil
}

// NewSource returns a deterministic random source for seed.
func NewSource(seed uint64) rand.Source {
	return rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
}
