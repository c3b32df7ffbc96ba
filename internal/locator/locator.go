package locator

import (
	"fmt"
	"strings"
	"time"

	"github.com/saudedigital/siasus-pa/internal/models"
)

// validStateCodes holds the 27 Brazilian federative-unit codes.
var validStateCodes = map[string]bool{
	"AC": true, "AL": true, "AP": true, "AM": true, "BA": true,
	"CE": true, "DF": true, "ES": true, "GO": true, "MA": true,
	"MT": true, "MS": true, "MG": true, "PA": true, "PB": true,
	"PR": true, "PE": true, "PI": true, "RJ": true, "RN": true,
	"RS": true, "RO": true, "RR": true, "SC": true, "SP": true,
	"SE": true, "TO": true,
}

const filePrefix = "PA"

// Locator enumerates candidate remote file names for one state and
// competence period. DATASUS splits large months into suffixed files
// (PASP2301.dbc, PASP2301a.dbc, ...), so a fixed set of suffixes is probed
// instead of listing the remote directory.
type Locator struct {
	maxSplitSuffixes int
}

func New(maxSplitSuffixes int) *Locator {
	if maxSplitSuffixes < 0 {
		maxSplitSuffixes = 0
	}
	if maxSplitSuffixes > 26 {
		maxSplitSuffixes = 26
	}
	return &Locator{maxSplitSuffixes: maxSplitSuffixes}
}

// NormalizeStateCode validates and upper-cases a federative-unit code.
func NormalizeStateCode(uf string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(uf))
	if !validStateCodes[normalized] {
		return "", models.NewAppError(models.ErrInvalidStateCode, fmt.Errorf("unknown federative unit code %q", uf))
	}
	return normalized, nil
}

// Period normalizes a reference date to the YYMM competence notation.
func Period(ref time.Time) (string, error) {
	if ref.IsZero() {
		return "", models.NewAppError(models.ErrInvalidPeriod, fmt.Errorf("reference date is not set"))
	}
	return ref.Format("0601"), nil
}

// Candidates builds the ordered, deduplicated list of remote file names that
// may hold data for the given state and period. The unsuffixed name comes
// first, followed by the alphabetical split suffixes.
func (l *Locator) Candidates(uf string, ref time.Time) ([]string, error) {
	stateCode, err := NormalizeStateCode(uf)
	if err != nil {
		return nil, err
	}

	period, err := Period(ref)
	if err != nil {
		return nil, err
	}

	base := filePrefix + stateCode + period
	seen := make(map[string]bool)
	candidates := make([]string, 0, l.maxSplitSuffixes+1)

	appendCandidate := func(name string) {
		if !seen[name] {
			seen[name] = true
			candidates = append(candidates, name)
		}
	}

	appendCandidate(base + ".dbc")
	for i := 0; i < l.maxSplitSuffixes; i++ {
		appendCandidate(base + string(rune('a'+i)) + ".dbc")
	}

	return candidates, nil
}
