package catalog

import "strings"

// classRule maps name fragments to a classification. Rules are tried in order
// and the first match wins.
type classRule struct {
	match []string
	class func(lower string) Classification
}

func fixed(c Classification) func(string) Classification {
	return func(string) Classification { return c }
}

var classRules = []classRule{
	{[]string{"starlink"}, fixed(Classification{GroupStarlink, "SpaceX", "STARLINK", "United States"})},
	{[]string{"gps", "navstar"}, fixed(Classification{GroupNavigation, "US SPACE FORCE", "GPS", "United States"})},
	{[]string{"glonass"}, fixed(Classification{GroupNavigation, "ROSCOSMOS", "GLONASS", "Russia"})},
	{[]string{"galileo"}, fixed(Classification{GroupNavigation, "ESA", "GALILEO", "European Union"})},
	{[]string{"beidou", "compass"}, fixed(Classification{GroupNavigation, "CNSA", "BEIDOU", "China"})},
	{[]string{"landsat"}, fixed(Classification{GroupEarthObservation, "NASA", "LANDSAT", "United States"})},
	{[]string{"sentinel"}, fixed(Classification{GroupEarthObservation, "ESA", "SENTINEL", "European Union"})},
	{[]string{"goes", "noaa"}, func(lower string) Classification {
		mission := "NOAA"
		if strings.Contains(lower, "goes") {
			mission = "GOES"
		}
		return Classification{GroupWeather, "NOAA", mission, "United States"}
	}},
	{[]string{"hubble"}, fixed(Classification{GroupScientific, "NASA", "HUBBLE", "United States"})},
	{[]string{"iss", "zarya"}, fixed(Classification{GroupSpaceStation, "NASA", "ISS", "International"})},
	{[]string{"deb", "r/b", "debris"}, fixed(Classification{Group: GroupDebris, Country: "Various"})},
	{[]string{"intelsat", "ses", "eutelsat"}, func(lower string) Classification {
		switch {
		case strings.Contains(lower, "intelsat"):
			return Classification{GroupCommunication, "INTELSAT", "COMMUNICATION", "United States"}
		case strings.Contains(lower, "ses"):
			return Classification{GroupCommunication, "SES", "COMMUNICATION", "Luxembourg"}
		default:
			return Classification{GroupCommunication, "EUTELSAT", "COMMUNICATION", "France"}
		}
	}},
}

// Classify infers category and metadata from an object name by
// case-insensitive substring match. Unmatched names fall into GroupOther with
// no metadata.
func Classify(name string) Classification {
	lower := strings.ToLower(name)
	for _, rule := range classRules {
		for _, m := range rule.match {
			if strings.Contains(lower, m) {
				return rule.class(lower)
			}
		}
	}
	return Classification{Group: GroupOther}
}

// LooksInactive reports whether a name carries the debris or rocket-body
// markers used by the active-only filter. This is a naming heuristic, not an
// operational status.
func LooksInactive(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "deb") || strings.Contains(lower, "r/b")
}
