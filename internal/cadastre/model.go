// Package cadastre holds the property ownership domain model and the
// owner/address aggregation over raw MAJIC rows.
package cadastre

// OwnerKeyUnknown is the sentinel owner key for rows carrying neither a SIREN
// nor a denomination.
const OwnerKeyUnknown = "inconnu"

// PropertyRow is one raw row from the spatial store: a single legal lot
// attached to a cadastral parcel, with its owner and geocoded address.
// Rows are immutable once read and live only for the duration of one query.
type PropertyRow struct {
	Siren        string
	Denomination string

	Department string
	CommuneCode string
	Prefix     string
	Section    string
	PlanNumber string

	StreetNumber string
	StreetType   string // MAJIC street-type code, e.g. "AV", "BD"
	StreetName   string
	CommuneName  string

	Longitude *float64
	Latitude  *float64
}

// OwnerKey returns the identity used to group rows into one owner:
// SIREN if present, else denomination, else the "inconnu" sentinel.
func (r PropertyRow) OwnerKey() string {
	if r.Siren != "" {
		return r.Siren
	}
	if r.Denomination != "" {
		return r.Denomination
	}
	return OwnerKeyUnknown
}

// GroupedProperty is one distinct normalized address of an owner, with the
// cadastral references found there and the raw lot count.
type GroupedProperty struct {
	Address    Address              `json:"adresse"`
	References []CadastralReference `json:"references_cadastrales"`
	LotCount   int                  `json:"nombre_lots"`
}

// OwnerResult is the public result shape for one distinct owner.
type OwnerResult struct {
	OwnerKey     string             `json:"cle_proprietaire"`
	Siren        string             `json:"siren,omitempty"`
	Denomination string             `json:"denomination,omitempty"`
	Properties   []GroupedProperty  `json:"proprietes"`
	Enrichment   *CompanyEnrichment `json:"entreprise,omitempty"`
	Longitude    *float64           `json:"longitude,omitempty"`
	Latitude     *float64           `json:"latitude,omitempty"`
}

// CompanyEnrichment is a registry snapshot attached to an owner. It is
// fetched at most once per owner per query and never persisted here.
type CompanyEnrichment struct {
	Siren            string            `json:"siren"`
	Denomination     string            `json:"denomination"`
	LegalForm        string            `json:"forme_juridique,omitempty"`
	CreationDate     string            `json:"date_creation,omitempty"`
	Headquarters     string            `json:"siege,omitempty"`
	Directors        []Director        `json:"dirigeants,omitempty"`
	BeneficialOwners []BeneficialOwner `json:"beneficiaires_effectifs,omitempty"`
}

// Director is one first-level director entry of an owner record.
type Director struct {
	FirstName    string `json:"prenom,omitempty"`
	LastName     string `json:"nom,omitempty"`
	Siren        string `json:"siren,omitempty"`
	Denomination string `json:"denomination,omitempty"`
	Role         string `json:"qualite,omitempty"`
}

// BeneficialOwner is a natural person reached through zero or more
// intermediary legal entities, with the control chain that led to them.
type BeneficialOwner struct {
	FirstName string             `json:"prenom"`
	LastName  string             `json:"nom"`
	Role      string             `json:"qualite,omitempty"`
	Chain     []ControlChainLink `json:"chaine_controle,omitempty"`
}

// ControlChainLink records one intermediary legal entity hop in a beneficial
// owner resolution.
type ControlChainLink struct {
	Siren        string `json:"siren"`
	Denomination string `json:"denomination"`
	Role         string `json:"qualite,omitempty"`
}
