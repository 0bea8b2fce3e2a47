package towninfo

import (
	"maps"
	"slices"
)

// Record is a single code/name pair as listed by the registry.
type Record struct {
	Code string
	Name string
}

// CodeTable is an immutable bidirectional mapping between the codes and
// names of one scope.
type CodeTable struct {
	scope      Scope
	codeToName map[string]string
	nameToCode map[string]string
}

// NewCodeTable creates a table out of a pair of existing mappings, the
// mappings are copied so later changes to them do not leak into the table.
func NewCodeTable(scope Scope, codeToName, nameToCode map[string]string) CodeTable {
	return CodeTable{
		scope:      scope,
		codeToName: maps.Clone(codeToName),
		nameToCode: maps.Clone(nameToCode),
	}
}

// newCodeTableFromRecords builds both mappings from the same records.
// duplicate codes or names are resolved last-write-wins, any entry the
// later record displaces is removed from both sides so the mappings stay
// exact inverses.
func newCodeTableFromRecords(scope Scope, records []Record) CodeTable {
	codeToName := make(map[string]string, len(records))
	nameToCode := make(map[string]string, len(records))

	for _, r := range records {
		if oldName, ok := codeToName[r.Code]; ok {
			delete(nameToCode, oldName)
		}
		if oldCode, ok := nameToCode[r.Name]; ok {
			delete(codeToName, oldCode)
		}
		codeToName[r.Code] = r.Name
		nameToCode[r.Name] = r.Code
	}

	return CodeTable{
		scope:      scope,
		codeToName: codeToName,
		nameToCode: nameToCode,
	}
}

func (t CodeTable) Scope() Scope {
	return t.scope
}

func (t CodeTable) Len() int {
	return len(t.codeToName)
}

func (t CodeTable) Code2Name(code string) (string, bool) {
	name, ok := t.codeToName[code]
	return name, ok
}

func (t CodeTable) Name2Code(name string) (string, bool) {
	code, ok := t.nameToCode[name]
	return code, ok
}

// Codes returns every code in the table in ascending order.
func (t CodeTable) Codes() []string {
	return slices.Sorted(maps.Keys(t.codeToName))
}

func (t CodeTable) CodeToName() map[string]string {
	return maps.Clone(t.codeToName)
}

func (t CodeTable) NameToCode() map[string]string {
	return maps.Clone(t.nameToCode)
}

func (t CodeTable) empty() bool {
	return len(t.codeToName) == 0 || len(t.nameToCode) == 0
}
