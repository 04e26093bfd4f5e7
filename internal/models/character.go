// internal/models/character.go
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DefaultLevel is assumed for characters whose export carries no level.
const DefaultLevel = 19

// MaxLevel is the highest character level accepted from an export.
const MaxLevel = 80

// ErrInvalidCharacter is returned when a character export cannot be used to
// join a lobby.
var ErrInvalidCharacter = errors.New("invalid character data")

// CharacterData is the typed metadata carried by every lobby participant.
// It is parsed once, when the export is first accepted, so nothing downstream
// needs to look inside the raw payload again.
type CharacterData struct {
	Name  string `json:"name"`
	Race  string `json:"race"`
	Class string `json:"class,omitempty"`
	Level int    `json:"level,omitempty"`
}

// EffectiveLevel returns Level, or DefaultLevel when the export had none.
func (c CharacterData) EffectiveLevel() int {
	if c.Level <= 0 {
		return DefaultLevel
	}
	return c.Level
}

// ParseCharacterData decodes a character export. The export may be the
// character object itself or wrap it as {"character": {...}}.
func ParseCharacterData(raw []byte) (CharacterData, error) {
	var envelope struct {
		Character *CharacterData `json:"character"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return CharacterData{}, fmt.Errorf("%w: %v", ErrInvalidCharacter, err)
	}

	var c CharacterData
	if envelope.Character != nil {
		c = *envelope.Character
	} else if err := json.Unmarshal(raw, &c); err != nil {
		return CharacterData{}, fmt.Errorf("%w: %v", ErrInvalidCharacter, err)
	}

	if err := c.Validate(); err != nil {
		return CharacterData{}, err
	}
	return c, nil
}

// Validate checks the fields a lobby relies on.
func (c CharacterData) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidCharacter)
	}
	if c.Level < 0 || c.Level > MaxLevel {
		return fmt.Errorf("%w: level %d out of range 1-%d", ErrInvalidCharacter, c.Level, MaxLevel)
	}
	return nil
}
