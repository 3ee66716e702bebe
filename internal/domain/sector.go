package domain

import "strings"

// GICS sector labels, the 11 canonical values sector normalization maps
// onto. Industries and sub-industries are out of scope.
const (
	SectorEnergy                = "Energy"
	SectorMaterials             = "Materials"
	SectorIndustrials           = "Industrials"
	SectorConsumerDiscretionary = "Consumer Discretionary"
	SectorConsumerStaples       = "Consumer Staples"
	SectorHealthCare            = "Health Care"
	SectorFinancials            = "Financials"
	SectorInformationTechnology = "Information Technology"
	SectorCommunicationServices = "Communication Services"
	SectorUtilities             = "Utilities"
	SectorRealEstate            = "Real Estate"
)

// sectorAliases maps the spellings providers actually return to the
// canonical GICS label.
var sectorAliases = map[string]string{
	"energy":                    SectorEnergy,
	"materials":                 SectorMaterials,
	"basic materials":           SectorMaterials,
	"industrials":               SectorIndustrials,
	"consumer discretionary":    SectorConsumerDiscretionary,
	"consumer cyclical":         SectorConsumerDiscretionary,
	"consumer staples":          SectorConsumerStaples,
	"consumer defensive":        SectorConsumerStaples,
	"healthcare":                SectorHealthCare,
	"health care":               SectorHealthCare,
	"financials":                SectorFinancials,
	"financial services":        SectorFinancials,
	"financial":                 SectorFinancials,
	"information technology":    SectorInformationTechnology,
	"technology":                SectorInformationTechnology,
	"communication services":    SectorCommunicationServices,
	"telecommunications":        SectorCommunicationServices,
	"utilities":                 SectorUtilities,
	"real estate":               SectorRealEstate,
}

// NormalizeSector maps a provider-supplied sector name to the canonical
// GICS label. Unknown inputs fall through to title case rather than being
// dropped, since providers occasionally invent new spellings.
func NormalizeSector(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	if canonical, ok := sectorAliases[key]; ok {
		return canonical
	}
	return strings.Title(key)
}
