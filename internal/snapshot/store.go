// Package snapshot reads the per-exchange daily end-of-day tables from disk.
package snapshot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rewired-gh/volspike/internal/calendar"
	"github.com/rewired-gh/volspike/internal/jsonfile"
	"github.com/rewired-gh/volspike/internal/models"
)

// ErrNotFound is returned when no snapshot exists for the requested day.
var ErrNotFound = errors.New("snapshot not found")

// todayFile is the rolling intraday dump written next to the daily files; it is not a closed day.
const todayFile = "today.json"

// Store reads snapshots laid out as <root>/<exchange>/<YYYMMDD>.json.
type Store struct {
	root string
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

func (s *Store) dir(exchange models.Exchange) string {
	return filepath.Join(s.root, string(exchange))
}

// LoadDay reads one day's snapshot. date may be in any notation ParseDate accepts.
func (s *Store) LoadDay(exchange models.Exchange, date string) (*models.DailySnapshot, error) {
	day, err := calendar.ParseDate(date)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(s.dir(exchange), calendar.FormatROC(day, "")+".json")

	var snap models.DailySnapshot
	if err := jsonfile.Read(path, &snap); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s %s: %w", exchange, date, ErrNotFound)
		}
		return nil, err
	}
	if snap.Date == "" {
		snap.Date = calendar.FormatROC(day, "")
	}
	return &snap, nil
}

// ListDaysDescending returns the available trading days for exchange, newest first,
// in compact ROC notation. Files whose names are not dates are ignored.
func (s *Store) ListDaysDescending(exchange models.Exchange) ([]string, error) {
	entries, err := os.ReadDir(s.dir(exchange))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list snapshots for %s: %w", exchange, err)
	}

	type day struct {
		name string
		key  string
	}
	days := make([]day, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == todayFile || !strings.HasSuffix(name, ".json") {
			continue
		}
		stem := strings.TrimSuffix(name, ".json")
		t, err := calendar.ParseDate(stem)
		if err != nil {
			continue
		}
		days = append(days, day{name: stem, key: calendar.FormatCE(t, "")})
	}

	sort.Slice(days, func(i, j int) bool {
		return days[i].key > days[j].key
	})

	out := make([]string, len(days))
	for i, d := range days {
		out[i] = d.name
	}
	return out, nil
}
