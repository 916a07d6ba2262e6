package sirene

// UnitRecord is a legal unit as returned by the registry.
type UnitRecord struct {
	Siren        string           `json:"siren"`
	Denomination string           `json:"denomination"`
	LegalForm    string           `json:"forme_juridique"`
	CreationDate string           `json:"date_creation"`
	Headquarters AddressRecord    `json:"siege"`
	Directors    []DirectorRecord `json:"dirigeants"`
}

// AddressRecord is the registered headquarters address of a unit.
type AddressRecord struct {
	Street     string `json:"voie"`
	PostalCode string `json:"code_postal"`
	City       string `json:"commune"`
}

// String renders the address on one line, skipping empty parts.
func (a AddressRecord) String() string {
	out := a.Street
	if a.PostalCode != "" {
		if out != "" {
			out += " "
		}
		out += a.PostalCode
	}
	if a.City != "" {
		if out != "" {
			out += " "
		}
		out += a.City
	}
	return out
}

// DirectorRecord is one director entry of a unit. A director is either a
// natural person (first/last name) or a legal entity (siren/denomination).
type DirectorRecord struct {
	Type         string `json:"type"` // "personne_physique" or "personne_morale"
	FirstName    string `json:"prenom,omitempty"`
	LastName     string `json:"nom,omitempty"`
	Siren        string `json:"siren,omitempty"`
	Denomination string `json:"denomination,omitempty"`
	Role         string `json:"qualite,omitempty"`
}

// IsNaturalPerson reports whether the director is a physical person rather
// than an intermediary legal entity.
func (d DirectorRecord) IsNaturalPerson() bool {
	if d.Type != "" {
		return d.Type == "personne_physique"
	}
	return d.Siren == ""
}
