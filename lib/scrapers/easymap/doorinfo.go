package easymap

import (
	"strconv"
	"strings"
)

// DoorInfo is the decoded json object returned by the door info endpoint,
// it is left as is apart from the accessors below.
type DoorInfo map[string]any

// TownCode returns the "towncode" field of the response.
func (d DoorInfo) TownCode() (string, bool) {
	return stringField(d, "towncode")
}

// stringField reads a json field that the portal sometimes encodes as a
// string and sometimes as a number, blank values count as missing.
func stringField(obj map[string]any, key string) (string, bool) {
	raw, ok := obj[key]
	if !ok || raw == nil {
		return "", false
	}

	var value string
	switch v := raw.(type) {
	case string:
		value = strings.TrimSpace(v)
	case float64:
		value = strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		value = strconv.FormatBool(v)
	default:
		return "", false
	}

	if value == "" {
		return "", false
	}
	return value, true
}
