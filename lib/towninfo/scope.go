package towninfo

import (
	"fmt"
	"regexp"
)

// Level is the jurisdiction level a code table describes.
type Level int

const (
	LevelCounty Level = iota
	LevelTown
)

func (l Level) String() string {
	switch l {
	case LevelCounty:
		return "county"
	case LevelTown:
		return "town"
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// fields returns the names of the registry xml elements holding the code
// and the name of a record at this level.
func (l Level) fields() (code string, name string) {
	if l == LevelTown {
		return "towncode", "townname"
	}
	return "countycode", "countyname"
}

// Scope identifies one code table: the county list, or the town list of
// a single county.
type Scope struct {
	Level Level
	// County is only set for town level scopes.
	County string
}

func CountyScope() Scope {
	return Scope{Level: LevelCounty}
}

func TownScope(county string) Scope {
	return Scope{Level: LevelTown, County: county}
}

var countyCodeRegex = regexp.MustCompile(`^[A-Za-z0-9]+$`)

func (s Scope) validate() error {
	if s.Level == LevelTown && !countyCodeRegex.MatchString(s.County) {
		return fmt.Errorf("%w: %q", ErrInvalidCounty, s.County)
	}
	return nil
}

func (s Scope) String() string {
	if s.Level == LevelTown {
		return fmt.Sprintf("town:%s", s.County)
	}
	return s.Level.String()
}
