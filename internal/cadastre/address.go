package cadastre

import (
	_ "embed"
	"strings"
	"sync"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

//go:embed voies.yaml
var streetTypeYAML []byte

var (
	streetTypesOnce sync.Once
	streetTypes     map[string]string
)

// streetTypeTable returns the MAJIC street-type decode table, loaded once from
// the embedded YAML file.
func streetTypeTable() map[string]string {
	streetTypesOnce.Do(func() {
		if err := yaml.Unmarshal(streetTypeYAML, &streetTypes); err != nil {
			// The embedded table is part of the build; a parse failure means a
			// broken binary, not bad input. Log and fall back to raw codes.
			zap.L().Error("cadastre: parse street type table", zap.Error(err))
			streetTypes = map[string]string{}
		}
	})
	return streetTypes
}

// Address is a normalized property address. Complete is the grouping key for
// "same building/address" aggregation.
type Address struct {
	StreetNumber string `json:"numero,omitempty"`
	StreetType   string `json:"type_voie,omitempty"`
	StreetName   string `json:"nom_voie,omitempty"`
	Commune      string `json:"commune,omitempty"`
	Department   string `json:"departement,omitempty"`
	Complete     string `json:"adresse_complete"`
}

// NormalizeAddress decodes and normalizes the address fields of a row:
// the MAJIC street-type code is expanded, diacritics are stripped, text is
// uppercased, and the complete-address string is derived deterministically.
func NormalizeAddress(r PropertyRow) Address {
	streetType := decodeStreetType(r.StreetType)
	streetName := normalizeText(r.StreetName)
	commune := normalizeText(r.CommuneName)
	number := strings.TrimSpace(r.StreetNumber)

	a := Address{
		StreetNumber: number,
		StreetType:   streetType,
		StreetName:   streetName,
		Commune:      commune,
		Department:   r.Department,
	}

	parts := make([]string, 0, 4)
	if number != "" {
		parts = append(parts, number)
	}
	if streetType != "" {
		parts = append(parts, streetType)
	}
	if streetName != "" {
		parts = append(parts, streetName)
	}
	if commune != "" {
		parts = append(parts, commune)
	}
	a.Complete = strings.Join(parts, " ")
	return a
}

// decodeStreetType expands a MAJIC street-type code ("AV" -> "AVENUE").
// Unknown codes are normalized but otherwise kept.
func decodeStreetType(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return ""
	}
	if full, ok := streetTypeTable()[code]; ok {
		return full
	}
	return code
}

// normalizeText strips diacritics, uppercases, and collapses interior runs of
// whitespace to a single space.
func normalizeText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err == nil {
		s = stripped
	}

	s = strings.ToUpper(s)
	return strings.Join(strings.Fields(s), " ")
}
