package bracket

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Player struct {
	ID           uuid.UUID `db:"id" json:"id"`
	TournamentID uuid.UUID `db:"tournament_id" json:"tournamentId"`
	Name         string    `db:"name" json:"name"`
	Seed         *int      `db:"seed" json:"seed"`
	RatingSystem *string   `db:"rating_system" json:"ratingSystem"`
	RatingValue  *string   `db:"rating_value" json:"ratingValue"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

type SkillLevel string

const (
	Beginner     SkillLevel = "BEGINNER"
	Intermediate SkillLevel = "INTERMEDIATE"
	Advanced     SkillLevel = "ADVANCED"
	Expert       SkillLevel = "EXPERT"
)

// Level names sort alongside Fargo-scale numbers using these representative values.
var levelRatings = map[SkillLevel]float64{
	Beginner:     300,
	Intermediate: 475,
	Advanced:     600,
	Expert:       700,
}

// Rating is a player's rating in some system, e.g. {"fargo", "612"} or {"apa", "5"} or {"", "ADVANCED"}.
type Rating struct {
	System string
	Value  string
}

func (p Player) Rating() (Rating, bool) {
	if p.RatingValue == nil || strings.TrimSpace(*p.RatingValue) == "" {
		return Rating{}, false
	}
	r := Rating{Value: strings.TrimSpace(*p.RatingValue)}
	if p.RatingSystem != nil {
		r.System = strings.ToLower(strings.TrimSpace(*p.RatingSystem))
	}
	return r, true
}

// NumericRating extracts a sortable number from the rating, if there is one.
func (p Player) NumericRating() (float64, bool) {
	r, ok := p.Rating()
	if !ok {
		return 0, false
	}
	if v, err := strconv.ParseFloat(r.Value, 64); err == nil {
		return v, true
	}
	if level, ok := parseLevel(r.Value); ok {
		return levelRatings[level], true
	}
	return 0, false
}

// SkillLevel buckets the rating for duration estimates.
func (p Player) SkillLevel() (SkillLevel, bool) {
	r, ok := p.Rating()
	if !ok {
		return "", false
	}
	if level, ok := parseLevel(r.Value); ok {
		return level, true
	}
	v, err := strconv.ParseFloat(r.Value, 64)
	if err != nil {
		return "", false
	}

	switch r.System {
	case "apa":
		switch {
		case v <= 3:
			return Beginner, true
		case v <= 5:
			return Intermediate, true
		case v <= 6:
			return Advanced, true
		default:
			return Expert, true
		}
	default:
		// Fargo scale
		switch {
		case v < 400:
			return Beginner, true
		case v < 550:
			return Intermediate, true
		case v < 650:
			return Advanced, true
		default:
			return Expert, true
		}
	}
}

func parseLevel(s string) (SkillLevel, bool) {
	level := SkillLevel(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := levelRatings[level]
	return level, ok
}

func SeedOf(p Player) int {
	if p.Seed == nil {
		return 0
	}
	return *p.Seed
}
