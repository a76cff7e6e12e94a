package pportal

// ProcurementTypes maps friendly names to the portal's procurement
// category checkbox codes.
var ProcurementTypes = map[string]string{
	"annual_plan":            "01",
	"rfi":                    "02",
	"opinion":                "03",
	"bid_designated_wto":     "04",
	"bid_wto":                "05",
	"award_wto":              "06",
	"negotiated":             "07",
	"award_negotiated":       "08",
	"bid_designated_non_wto": "09",
	"bid_non_wto":            "10",
	"award_non_wto":          "11",
	"open_counter":           "12",
	"proposal":               "14",
	"open_counter_small":     "15",
}

// Organizations maps friendly names to the portal's procuring-agency
// codes.
var Organizations = map[string]string{
	"shugiin":        "001",
	"sangiin":        "002",
	"courts":         "003",
	"audit":          "004",
	"cabinet":        "005",
	"npa":            "006",
	"mod":            "007",
	"npa_police":     "008",
	"mic":            "009",
	"cao":            "010",
	"jftc":           "011",
	"moj":            "012",
	"mofa":           "013",
	"mof":            "014",
	"mext":           "015",
	"mhlw":           "016",
	"maff":           "017",
	"meti":           "019",
	"mlit":           "020",
	"env":            "021",
	"caa":            "022",
	"ppc":            "023",
	"reconstruction": "024",
	"iha":            "025",
	"fsa":            "026",
	"digital":        "027",
	"casino":         "028",
	"cfa":            "029",
}

// ResolveOrganization turns a friendly name or a raw three-digit code
// into the portal code. Unknown values pass through unchanged so raw
// codes work without a table entry.
func ResolveOrganization(name string) string {
	if code, ok := Organizations[name]; ok {
		return code
	}
	return name
}

// DefaultProcurementTypes are the codes searched when none are given:
// open bid announcements (WTO and non-WTO) and proposal calls.
var DefaultProcurementTypes = []string{"05", "10", "13"}
