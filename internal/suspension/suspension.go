// Package suspension loads the list of symbols halted from trading on a given day.
package suspension

import (
	"encoding/json"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/rewired-gh/volspike/internal/calendar"
	"github.com/rewired-gh/volspike/internal/jsonfile"
	"github.com/rewired-gh/volspike/internal/models"
)

// Set holds bare symbol codes (no market suffix).
type Set map[string]struct{}

// Load reads the suspension file at path and returns the codes listed for day.
// The file maps "YYYY-MM-DD" to objects keyed by suffixed symbols such as "2330.TW".
// A missing file or a day without entries yields an empty set.
func Load(path string, day time.Time) (Set, error) {
	set := make(Set)
	if path == "" {
		return set, nil
	}

	var byDay map[string]map[string]json.RawMessage
	if err := jsonfile.Read(path, &byDay); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return set, nil
		}
		return nil, err
	}

	for key := range byDay[calendar.FormatCE(day, "-")] {
		code, _, _ := strings.Cut(key, ".")
		if code = strings.TrimSpace(code); code != "" {
			set[code] = struct{}{}
		}
	}
	return set, nil
}

// Contains reports whether symbol is suspended.
func (s Set) Contains(symbol string) bool {
	_, ok := s[symbol]
	return ok
}

// Exclude returns candidates whose symbols are not suspended, preserving order.
func (s Set) Exclude(candidates []models.Candidate) []models.Candidate {
	return lo.Reject(candidates, func(c models.Candidate, _ int) bool {
		return s.Contains(c.Symbol)
	})
}
