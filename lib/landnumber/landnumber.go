package landnumber

import "fmt"

// LandNumber is the town a point resolves to. Name is nil when the portal
// answers with a code the registry does not know about.
type LandNumber struct {
	Name *string `json:"name"`
	Code string  `json:"code"`
}

func (l LandNumber) String() string {
	name := "None"
	if l.Name != nil {
		name = *l.Name
	}
	return fmt.Sprintf("%s(%s)", name, l.Code)
}

// ResolutionError means every call succeeded but their results do not
// fit together.
type ResolutionError struct {
	CityCode string
	Message  string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve land number: %s %s", e.Message, e.CityCode)
}
