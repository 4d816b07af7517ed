package screener

import (
	"fmt"
	"path/filepath"

	"github.com/rewired-gh/volspike/internal/jsonfile"
	"github.com/rewired-gh/volspike/internal/models"
)

// CandidatePath is where the candidate list for exchange is kept under dir.
func CandidatePath(dir string, exchange models.Exchange) string {
	return filepath.Join(dir, fmt.Sprintf("candidates_%s.json", exchange))
}

// WriteCandidates replaces the candidate list file at path.
func WriteCandidates(path string, candidates []models.Candidate) error {
	if candidates == nil {
		candidates = []models.Candidate{}
	}
	return jsonfile.Write(path, candidates)
}

// ReadCandidates loads a candidate list written by WriteCandidates.
// Entries that fail validation are dropped.
func ReadCandidates(path string) ([]models.Candidate, error) {
	var raw []models.Candidate
	if err := jsonfile.Read(path, &raw); err != nil {
		return nil, err
	}
	out := make([]models.Candidate, 0, len(raw))
	for _, c := range raw {
		if err := c.Validate(); err != nil {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}
