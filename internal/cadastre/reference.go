package cadastre

import "strings"

// CadastralReference identifies one parcel. Two references designate the same
// parcel iff their Complete strings are equal.
type CadastralReference struct {
	Department string `json:"departement"`
	Commune    string `json:"commune"`
	Prefix     string `json:"prefixe,omitempty"`
	Section    string `json:"section"`
	PlanNumber string `json:"numero_plan"`
	Complete   string `json:"reference_complete"`
}

// NewCadastralReference builds a reference with its derived Complete string.
// The prefix defaults to "000" when the source row carries none, matching the
// MAJIC convention for non-absorbed communes.
func NewCadastralReference(department, commune, prefix, section, plan string) CadastralReference {
	if prefix == "" {
		prefix = "000"
	}
	section = strings.TrimSpace(section)
	plan = strings.TrimSpace(plan)
	return CadastralReference{
		Department: department,
		Commune:    commune,
		Prefix:     prefix,
		Section:    section,
		PlanNumber: plan,
		Complete:   department + commune + prefix + section + plan,
	}
}

// referenceFromRow derives the parcel reference of a property row.
func referenceFromRow(r PropertyRow) CadastralReference {
	return NewCadastralReference(r.Department, r.CommuneCode, r.Prefix, r.Section, r.PlanNumber)
}
