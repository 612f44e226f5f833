package metadata

import "sort"

// regionNames maps provider region codes (ISO 3166 alpha-2 plus aggregate
// groupings) to display names.
var regionNames = map[string]string{
	"asia":     "Asia",
	"asiapjp":  "Asia + Japan",
	"asiaxjp":  "Asia ex Japan",
	"asxmc":    "Asia ex Mainland China",
	"apac":     "Asia Pacific",
	"apacxjp":  "Asia Pacific ex Japan",
	"au":       "Australia",
	"br":       "Brazil",
	"ca":       "Canada",
	"cn":       "China",
	"dk":       "Denmark",
	"devasia":  "Developing Asia",
	"dvmkts":   "Developed Markets",
	"emkts":    "Emerging Markets",
	"eueu":     "EU",
	"eu":       "Euro Area",
	"europe":   "Europe",
	"fi":       "Finland",
	"fr":       "France",
	"de":       "Germany",
	"hk":       "Hong Kong",
	"in":       "India",
	"it":       "Italy",
	"jp":       "Japan",
	"latam":    "Latin America",
	"mfivasia": "Major Five Asia",
	"nordic":   "Nordic Countries",
	"noram":    "North America",
	"no":       "Norway",
	"opec":     "OPEC Members",
	"sg":       "Singapore",
	"za":       "South Africa",
	"kr":       "South Korea",
	"es":       "Spain",
	"se":       "Sweden",
	"tw":       "Taiwan",
	"gb":       "United Kingdom",
	"us":       "United States",
}

var (
	regionCodes = invert(regionNames)
	sortedCodes = sortedKeys(regionNames)
)

// RegionName returns the display name of a region code.
func RegionName(code string) (string, bool) {
	name, ok := regionNames[code]
	return name, ok
}

// RegionCode returns the code of a region display name.
func RegionCode(name string) (string, bool) {
	code, ok := regionCodes[name]
	return code, ok
}

// RegionCodes returns every known region code in sorted order.
func RegionCodes() []string {
	return append([]string(nil), sortedCodes...)
}

func invert(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
