// Package seeding orders players before bracket generation. Every function returns a new slice with seeds
// 1..N assigned in output order and leaves its input untouched.
package seeding

import (
	"fmt"
	"sort"

	"github.com/AdamBeresnev/cue-scheduler/internal/apperr"
	"github.com/AdamBeresnev/cue-scheduler/internal/bracket"
	"github.com/AdamBeresnev/cue-scheduler/internal/utils"
	"github.com/google/uuid"
)

func numbered(players []bracket.Player) []bracket.Player {
	for i := range players {
		players[i].Seed = utils.Ptr(i + 1)
	}
	return players
}

func clone(players []bracket.Player) []bracket.Player {
	out := make([]bracket.Player, len(players))
	copy(out, players)
	return out
}

// RandomSeeding is a Fisher-Yates shuffle drawing from src.
func RandomSeeding(players []bracket.Player, src Source) []bracket.Player {
	out := clone(players)
	for i := len(out) - 1; i > 0; i-- {
		j := int(src.Float64() * float64(i+1))
		out[i], out[j] = out[j], out[i]
	}
	return numbered(out)
}

// SkillBasedSeeding puts the highest rated players first. Unrated players go last and ties keep their
// input order.
func SkillBasedSeeding(players []bracket.Player) []bracket.Player {
	out := clone(players)
	sort.SliceStable(out, func(i, j int) bool {
		ri, okI := out[i].NumericRating()
		rj, okJ := out[j].NumericRating()
		if okI != okJ {
			return okI
		}
		return ri > rj
	})
	return numbered(out)
}

// ManualSeeding orders players exactly as listed in order.
func ManualSeeding(players []bracket.Player, order []uuid.UUID) ([]bracket.Player, error) {
	if len(order) != len(players) {
		return nil, apperr.Validation("order", "seed order lists %d players, tournament has %d", len(order), len(players))
	}

	byID := make(map[uuid.UUID]bracket.Player, len(players))
	for _, p := range players {
		byID[p.ID] = p
	}

	out := make([]bracket.Player, 0, len(order))
	used := make(map[uuid.UUID]bool, len(order))
	for _, id := range order {
		p, ok := byID[id]
		if !ok {
			return nil, apperr.Validation("order", "unknown player %s", id)
		}
		if used[id] {
			return nil, apperr.Validation("order", "player %s listed twice", id)
		}
		used[id] = true
		out = append(out, p)
	}
	return numbered(out), nil
}

// SnakeSeeding deals seeded players into groups back and forth: 1..g left to right, then g+1..2g right
// to left, and so on. Players are taken in seed order.
func SnakeSeeding(seeded []bracket.Player, groupCount int) ([][]bracket.Player, error) {
	if groupCount < 2 {
		return nil, apperr.Validation("groupCount", "at least 2 groups are required, got %d", groupCount)
	}
	if len(seeded) < groupCount {
		return nil, apperr.Validation("groupCount", "%d players cannot fill %d groups", len(seeded), groupCount)
	}

	ordered := bySeed(seeded)
	groups := make([][]bracket.Player, groupCount)
	for i, p := range ordered {
		row, col := i/groupCount, i%groupCount
		if row%2 == 1 {
			col = groupCount - 1 - col
		}
		groups[col] = append(groups[col], p)
	}
	return groups, nil
}

// ValidateSeeding checks that seeds form a 1..N permutation.
func ValidateSeeding(players []bracket.Player) error {
	seen := make(map[int]bool, len(players))
	for _, p := range players {
		if p.Seed == nil {
			return apperr.Validation("seed", "player %s has no seed", p.ID)
		}
		s := *p.Seed
		if s < 1 || s > len(players) {
			return apperr.Validation("seed", "seed %d is outside 1..%d", s, len(players))
		}
		if seen[s] {
			return apperr.Validation("seed", "seed %d is used more than once", s)
		}
		seen[s] = true
	}
	return nil
}

// ReseedAfterWithdrawal closes the gaps left by withdrawn players while keeping relative order. Unseeded
// players follow the seeded ones in input order.
func ReseedAfterWithdrawal(players []bracket.Player) []bracket.Player {
	return numbered(bySeed(players))
}

func bySeed(players []bracket.Player) []bracket.Player {
	out := clone(players)
	sort.SliceStable(out, func(i, j int) bool {
		si, sj := out[i].Seed, out[j].Seed
		switch {
		case si == nil:
			return false
		case sj == nil:
			return true
		default:
			return *si < *sj
		}
	})
	return out
}

// Method names a seeding strategy.
type Method string

const (
	MethodRandom   Method = "random"
	MethodSkill    Method = "skill"
	MethodManual   Method = "manual"
	MethodExisting Method = "existing"
)

// Options selects a method and its inputs.
type Options struct {
	Method Method      `json:"method"`
	Seed   *int64      `json:"seed"`
	Order  []uuid.UUID `json:"order"`
}

// Random, SkillBased, Manual and Existing adapt the functions above to bracket.Seeder.

func Random(src Source) bracket.Seeder {
	return func(players []bracket.Player) ([]bracket.Player, error) {
		return RandomSeeding(players, src), nil
	}
}

func SkillBased() bracket.Seeder {
	return func(players []bracket.Player) ([]bracket.Player, error) {
		return SkillBasedSeeding(players), nil
	}
}

func Manual(order []uuid.UUID) bracket.Seeder {
	return func(players []bracket.Player) ([]bracket.Player, error) {
		return ManualSeeding(players, order)
	}
}

// Existing keeps the seeds players already carry, which must be a valid permutation.
func Existing() bracket.Seeder {
	return func(players []bracket.Player) ([]bracket.Player, error) {
		if err := ValidateSeeding(players); err != nil {
			return nil, err
		}
		return ReseedAfterWithdrawal(players), nil
	}
}

// Seeder builds the bracket.Seeder described by opts. The zero value keeps existing seeds.
func (o Options) Seeder() (bracket.Seeder, error) {
	switch o.Method {
	case MethodRandom:
		return Random(NewSource(o.Seed)), nil
	case MethodSkill:
		return SkillBased(), nil
	case MethodManual:
		return Manual(o.Order), nil
	case MethodExisting, "":
		return Existing(), nil
	default:
		return nil, apperr.Validation("method", "unknown seeding method %q", o.Method)
	}
}

func (o Options) String() string {
	if o.Seed != nil {
		return fmt.Sprintf("%s(seed=%d)", o.Method, *o.Seed)
	}
	return string(o.Method)
}
