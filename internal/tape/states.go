package tape

import "strings"

// StateField holds the two-letter state code of each loan.
const StateField = "state"

// stateCodes maps full names and postal codes, lower cased, to USPS codes.
var stateCodes = map[string]string{
	"alabama": "AL", "alaska": "AK", "arizona": "AZ", "arkansas": "AR",
	"california": "CA", "colorado": "CO", "connecticut": "CT", "delaware": "DE",
	"florida": "FL", "georgia": "GA", "hawaii": "HI", "idaho": "ID",
	"illinois": "IL", "indiana": "IN", "iowa": "IA", "kansas": "KS",
	"kentucky": "KY", "louisiana": "LA", "maine": "ME", "maryland": "MD",
	"massachusetts": "MA", "michigan": "MI", "minnesota": "MN", "mississippi": "MS",
	"missouri": "MO", "montana": "MT", "nebraska": "NE", "nevada": "NV",
	"new hampshire": "NH", "new jersey": "NJ", "new mexico": "NM", "new york": "NY",
	"north carolina": "NC", "north dakota": "ND", "ohio": "OH", "oklahoma": "OK",
	"oregon": "OR", "pennsylvania": "PA", "rhode island": "RI", "south carolina": "SC",
	"south dakota": "SD", "tennessee": "TN", "texas": "TX", "utah": "UT",
	"vermont": "VT", "virginia": "VA", "washington": "WA", "west virginia": "WV",
	"wisconsin": "WI", "wyoming": "WY",
	"district of columbia":                 "DC",
	"american samoa":                       "AS",
	"guam":                                 "GU",
	"northern mariana islands":             "MP",
	"puerto rico":                          "PR",
	"united states minor outlying islands": "UM",
	"u.s. virgin islands":                  "VI",
}

func init() {
	codes := make([]string, 0, len(stateCodes))
	for _, code := range stateCodes {
		codes = append(codes, code)
	}
	for _, code := range codes {
		stateCodes[strings.ToLower(code)] = code
	}
}

// StandardizeState returns the USPS code for a state name or code in any
// case. Unknown values come back trimmed and upper cased.
func StandardizeState(s string) string {
	key := strings.ToLower(strings.TrimSpace(s))
	if code, ok := stateCodes[key]; ok {
		return code
	}
	return strings.ToUpper(key)
}
