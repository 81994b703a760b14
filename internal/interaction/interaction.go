package interaction

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// Position is the top-left corner of an interaction on the overlay, in percent
// of the overlay's width and height.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Def describes one time-anchored interaction. Defs are immutable for the
// lifetime of a playback session.
type Def struct {
	ID          int             `json:"id" yaml:"id"`
	From        float64         `json:"from" yaml:"from"`
	To          float64         `json:"to" yaml:"to"`
	Position    Position        `json:"position" yaml:"position"`
	PauseOnShow bool            `json:"pauseOnShow" yaml:"pauseOnShow"`
	Library     string          `json:"library" yaml:"library"`
	Params      json.RawMessage `json:"params,omitempty" yaml:"-"`
	Label       string          `json:"label,omitempty" yaml:"label"`
}

// Contains reports whether second falls inside the def's closed window.
func (d Def) Contains(second int) bool {
	s := float64(second)
	return d.From <= s && s <= d.To
}

// MachineName is the library identifier without its version suffix.
func (d Def) MachineName() string {
	return MachineName(d.Library)
}

func MachineName(library string) string {
	name, _, _ := strings.Cut(strings.TrimSpace(library), " ")
	return name
}

// ClassName turns "H5P.MultiChoice 1.0" into "h5p-multichoice".
func ClassName(library string) string {
	return strings.ToLower(strings.Replace(MachineName(library), ".", "-", 1))
}

type FieldError struct {
	Index   int
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("interaction %d: %s %s", e.Index, e.Field, e.Message)
}

const MaxInteractions = 500

var ErrTooManyInteractions = fmt.Errorf("at most %d interactions are allowed", MaxInteractions)

// Validate checks every def and returns all problems joined, or nil.
func Validate(defs []Def) error {
	if len(defs) > MaxInteractions {
		return ErrTooManyInteractions
	}

	var errs []error
	seen := make(map[int]int, len(defs))
	for i, d := range defs {
		if prev, ok := seen[d.ID]; ok {
			errs = append(errs, &FieldError{Index: i, Field: "id", Message: fmt.Sprintf("duplicates interaction %d", prev)})
		} else {
			seen[d.ID] = i
		}
		if d.ID < 0 {
			errs = append(errs, &FieldError{Index: i, Field: "id", Message: "must not be negative"})
		}
		switch {
		case !finite(d.From):
			errs = append(errs, &FieldError{Index: i, Field: "from", Message: "must be a finite number"})
		case d.From < 0:
			errs = append(errs, &FieldError{Index: i, Field: "from", Message: "must not be negative"})
		}
		switch {
		case !finite(d.To):
			errs = append(errs, &FieldError{Index: i, Field: "to", Message: "must be a finite number"})
		case finite(d.From) && d.From > d.To:
			errs = append(errs, &FieldError{Index: i, Field: "to", Message: "must not be before from"})
		}
		if MachineName(d.Library) == "" {
			errs = append(errs, &FieldError{Index: i, Field: "library", Message: "is required"})
		}
		if !finite(d.Position.X) || d.Position.X < 0 || d.Position.X > 100 {
			errs = append(errs, &FieldError{Index: i, Field: "position.x", Message: "must be between 0 and 100"})
		}
		if !finite(d.Position.Y) || d.Position.Y < 0 || d.Position.Y > 100 {
			errs = append(errs, &FieldError{Index: i, Field: "position.y", Message: "must be between 0 and 100"})
		}
		if len(d.Params) > 0 && !json.Valid(d.Params) {
			errs = append(errs, &FieldError{Index: i, Field: "params", Message: "must be valid JSON"})
		}
	}
	return errors.Join(errs...)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Messages flattens a Validate error into user-facing strings.
func Messages(err error) []string {
	if err == nil {
		return nil
	}
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		msgs := make([]string, 0, len(joined.Unwrap()))
		for _, e := range joined.Unwrap() {
			msgs = append(msgs, e.Error())
		}
		return msgs
	}
	return []string{err.Error()}
}

// Number assigns sequential ids to defs that arrive as an ordered list
// without explicit ids.
func Number(defs []Def) []Def {
	out := make([]Def, len(defs))
	for i, d := range defs {
		d.ID = i
		out[i] = d
	}
	return out
}
