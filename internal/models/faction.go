// internal/models/faction.go
package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Faction is one of the two opposing sides of a team contest.
type Faction int

const (
	FactionAlliance Faction = iota // side A
	FactionHorde                   // side B
)

var allianceRaces = map[string]bool{
	"HUMAN": true, "DWARF": true, "NIGHTELF": true, "GNOME": true, "DRAENEI": true,
}

var hordeRaces = map[string]bool{
	"ORC": true, "UNDEAD": true, "TAUREN": true, "TROLL": true, "BLOODELF": true,
}

func (f Faction) String() string {
	switch f {
	case FactionAlliance:
		return "Alliance"
	case FactionHorde:
		return "Horde"
	default:
		return fmt.Sprintf("Faction(%d)", int(f))
	}
}

// Valid reports whether f is one of the two known sides.
func (f Faction) Valid() bool {
	return f == FactionAlliance || f == FactionHorde
}

// ParseFaction accepts "alliance"/"horde" (any case) and the side aliases "a"/"b".
func ParseFaction(s string) (Faction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "alliance", "a":
		return FactionAlliance, nil
	case "horde", "b":
		return FactionHorde, nil
	}
	return 0, fmt.Errorf("unknown faction %q", s)
}

// FactionForRace maps a playable race to the side it belongs to. Spaces,
// underscores and case are ignored, so "Night Elf" and "NIGHT_ELF" both match.
func FactionForRace(race string) (Faction, error) {
	key := strings.ToUpper(strings.NewReplacer(" ", "", "_", "").Replace(race))
	switch {
	case allianceRaces[key]:
		return FactionAlliance, nil
	case hordeRaces[key]:
		return FactionHorde, nil
	}
	return 0, fmt.Errorf("unknown race %q", race)
}

func (f Faction) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.String())
}

func (f *Faction) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseFaction(s)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}
