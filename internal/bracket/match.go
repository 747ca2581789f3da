package bracket

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/AdamBeresnev/cue-scheduler/internal/matchstate"
	"github.com/google/uuid"
)

type BracketSide string

const (
	NoSide          BracketSide = ""
	WinnersSide     BracketSide = "winners"
	LosersSide      BracketSide = "losers"
	GrandFinalsSide BracketSide = "grand_finals"
)

type Slot string

const (
	SlotA Slot = "A"
	SlotB Slot = "B"
)

// Key addresses a match inside one bracket structure.
type Key struct {
	Bracket  BracketSide
	Round    int
	Position int
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%d:%d", k.Bracket, k.Round, k.Position)
}

// Link points at the slot a match's winner (or loser) moves into.
type Link struct {
	Bracket  BracketSide `json:"bracket"`
	Round    int         `json:"round"`
	Position int         `json:"position"`
	Slot     Slot        `json:"slot"`
}

func (l Link) Key() Key {
	return Key{Bracket: l.Bracket, Round: l.Round, Position: l.Position}
}

func (l Link) String() string {
	return fmt.Sprintf("%s:%d:%d:%s", l.Bracket, l.Round, l.Position, l.Slot)
}

func (l Link) Value() (driver.Value, error) {
	return l.String(), nil
}

func (l *Link) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("cannot scan %T into Link", src)
	}

	parts := strings.Split(s, ":")
	if len(parts) != 4 {
		return fmt.Errorf("malformed link %q", s)
	}
	round, err := strconv.Atoi(parts[1])
	if err != nil {
		return fmt.Errorf("malformed link round %q: %w", s, err)
	}
	position, err := strconv.Atoi(parts[2])
	if err != nil {
		return fmt.Errorf("malformed link position %q: %w", s, err)
	}
	slot := Slot(parts[3])
	if slot != SlotA && slot != SlotB {
		return fmt.Errorf("malformed link slot %q", s)
	}

	*l = Link{Bracket: BracketSide(parts[0]), Round: round, Position: position, Slot: slot}
	return nil
}

func slotFor(position int) Slot {
	if position%2 == 0 {
		return SlotA
	}
	return SlotB
}

type Match struct {
	ID           uuid.UUID `db:"id" json:"id"`
	TournamentID uuid.UUID `db:"tournament_id" json:"tournamentId"`

	// Position in the bracket for reconstructing the structure
	Bracket  BracketSide `db:"bracket_side" json:"bracket"`
	Round    int         `db:"round_number" json:"round"`
	Position int         `db:"position" json:"position"`

	PlayerAID *uuid.UUID `db:"player_a_id" json:"playerAId"`
	PlayerBID *uuid.UUID `db:"player_b_id" json:"playerBId"`

	ScoreA   int              `db:"score_a" json:"scoreA"`
	ScoreB   int              `db:"score_b" json:"scoreB"`
	State    matchstate.State `db:"state" json:"state"`
	WinnerID *uuid.UUID       `db:"winner_id" json:"winnerId"`

	FeedsInto      *Link `db:"feeds_into" json:"feedsInto"`
	LoserFeedsInto *Link `db:"loser_feeds_into" json:"loserFeedsInto"`
	IsBye          bool  `db:"is_bye" json:"isBye"`

	TableID  *uuid.UUID `db:"table_id" json:"tableId"`
	Revision int        `db:"revision" json:"revision"`

	StartedAt   *time.Time `db:"started_at" json:"startedAt"`
	CompletedAt *time.Time `db:"completed_at" json:"completedAt"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
}

func (m *Match) Key() Key {
	return Key{Bracket: m.Bracket, Round: m.Round, Position: m.Position}
}

func (m *Match) HasPlayers() bool {
	return m.PlayerAID != nil && m.PlayerBID != nil
}

func (m *Match) PlayerIn(slot Slot) *uuid.UUID {
	if slot == SlotA {
		return m.PlayerAID
	}
	return m.PlayerBID
}

func (m *Match) setPlayer(slot Slot, id uuid.UUID) {
	if slot == SlotA {
		m.PlayerAID = &id
	} else {
		m.PlayerBID = &id
	}
}

func (m *Match) HasPlayer(id uuid.UUID) bool {
	return (m.PlayerAID != nil && *m.PlayerAID == id) || (m.PlayerBID != nil && *m.PlayerBID == id)
}

// Opponent returns the other player in the match, if both are known.
func (m *Match) Opponent(id uuid.UUID) (uuid.UUID, bool) {
	switch {
	case m.PlayerAID != nil && *m.PlayerAID == id && m.PlayerBID != nil:
		return *m.PlayerBID, true
	case m.PlayerBID != nil && *m.PlayerBID == id && m.PlayerAID != nil:
		return *m.PlayerAID, true
	default:
		return uuid.Nil, false
	}
}

// Loser is only defined for a decided match with two players.
func (m *Match) Loser() (uuid.UUID, bool) {
	if m.WinnerID == nil {
		return uuid.Nil, false
	}
	return m.Opponent(*m.WinnerID)
}

func (m *Match) IsWinner(id uuid.UUID) bool {
	return m.State == matchstate.Completed && m.WinnerID != nil && *m.WinnerID == id
}

func (m *Match) IsLoser(id uuid.UUID) bool {
	return m.State == matchstate.Completed && m.WinnerID != nil && *m.WinnerID != id && m.HasPlayer(id)
}

// MatchID derives a stable id from the tournament and bracket key so regenerating a bracket is reproducible.
func MatchID(tournamentID uuid.UUID, k Key) uuid.UUID {
	return uuid.NewSHA1(tournamentID, []byte(k.String()))
}
