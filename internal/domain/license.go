package domain

import "strings"

// License is one entry of the static rights lookup table.
type License struct {
	Label string
	URL   string
}

// licenses maps normalized license codes to rights URLs. Static lookup
// data, not computed. PD-class codes carry an empty URL and suppress
// the attribution statement.
var licenses = map[string]License{
	// Creative Commons
	"PD":            {Label: "Public Domain"},
	"PUBLIC DOMAIN": {Label: "Public Domain"},
	"PUBLIC-DOMAIN": {Label: "Public Domain"},
	"PDM":           {Label: "Public Domain Mark"},

	"CC0":          {Label: "Public Domain Dedication", URL: "http://creativecommons.org/publicdomain/zero/1.0/"},
	"CC-BY":        {Label: "Attribution", URL: "http://creativecommons.org/licenses/by/4.0/"},
	"CC-BY-SA":     {Label: "Attribution-ShareAlike", URL: "http://creativecommons.org/licenses/by-sa/4.0/"},
	"CC-BY-ND":     {Label: "Attribution-NoDerivs", URL: "http://creativecommons.org/licenses/by-nd/4.0/"},
	"CC-BY-NC":     {Label: "Attribution-NonCommercial", URL: "http://creativecommons.org/licenses/by-nc/4.0/"},
	"CC-BY-NC-SA":  {Label: "Attribution-NonCommercial-ShareAlike", URL: "http://creativecommons.org/licenses/by-nc-sa/4.0/"},
	"CC-BY-NC-ND":  {Label: "Attribution-NonCommercial-NoDerivs", URL: "http://creativecommons.org/licenses/by-nc-nd/4.0/"},

	// RightsStatements.org
	"INC":       {Label: "IN COPYRIGHT", URL: "http://rightsstatements.org/vocab/InC/1.0/"},
	"INC-OW-EU": {Label: "IN COPYRIGHT - EU ORPHAN WORK", URL: "http://rightsstatements.org/vocab/InC-OW-EU/1.0/"},
	"INC-EDU":   {Label: "IN COPYRIGHT - EDUCATIONAL USE PERMITTED", URL: "http://rightsstatements.org/vocab/InC-EDU/1.0/"},
	"INC-NC":    {Label: "IN COPYRIGHT - NON-COMMERCIAL USE PERMITTED", URL: "http://rightsstatements.org/vocab/InC-NC/1.0/"},
	"INC-RUU":   {Label: "IN COPYRIGHT - RIGHTS-HOLDER(S) UNLOCATABLE OR UNIDENTIFIABLE", URL: "http://rightsstatements.org/vocab/InC-RUU/1.0/"},
	"NOC-CR":    {Label: "NO COPYRIGHT - CONTRACTUAL RESTRICTIONS", URL: "http://rightsstatements.org/vocab/NoC-CR/1.0/"},
	"NOC-NC":    {Label: "NO COPYRIGHT - NON-COMMERCIAL USE ONLY", URL: "http://rightsstatements.org/vocab/NoC-NC/1.0/"},
	"NOC-OKLR":  {Label: "NO COPYRIGHT - OTHER KNOWN LEGAL RESTRICTIONS", URL: "http://rightsstatements.org/vocab/NoC-OKLR/1.0/"},
	"NOC-US":    {Label: "NO COPYRIGHT - UNITED STATES", URL: "http://rightsstatements.org/vocab/NoC-US/1.0/"},
	"CNE":       {Label: "COPYRIGHT NOT EVALUATED", URL: "http://rightsstatements.org/vocab/CNE/1.0/"},
	"UND":       {Label: "COPYRIGHT UNDETERMINED", URL: "http://rightsstatements.org/vocab/UND/1.0/"},
	"NKC":       {Label: "NO KNOWN COPYRIGHT", URL: "http://rightsstatements.org/vocab/NKC/1.0/"},
}

// publicDomainCodes are rights codes that never carry an attribution
// requirement.
var publicDomainCodes = map[string]bool{
	"PD":            true,
	"PUBLIC DOMAIN": true,
	"PUBLIC-DOMAIN": true,
	"PDM":           true,
}

// LookupLicense resolves a license code, case-insensitively.
func LookupLicense(code string) (License, bool) {
	lic, ok := licenses[strings.ToUpper(strings.TrimSpace(code))]
	return lic, ok
}

// IsPublicDomainCode reports whether code is a public-domain-class
// rights code.
func IsPublicDomainCode(code string) bool {
	return publicDomainCodes[strings.ToUpper(strings.TrimSpace(code))]
}
