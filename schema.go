package main

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// Columns are the zero-based positions of the fields a record contributes.
type Columns struct {
	StartIP     int
	EndIP       int
	CountryCode int
}

// MaxIndex is the highest column a record must reach.
func (c Columns) MaxIndex() int {
	max := c.StartIP
	if c.EndIP > max {
		max = c.EndIP
	}
	if c.CountryCode > max {
		max = c.CountryCode
	}
	return max
}

// Schema describes a known CSV export: where its fields live, whether its
// first record is a header, and how to recognize it from that first record.
type Schema struct {
	Name       string
	Columns    Columns
	SkipHeader bool
	Match      func(first []string) bool
}

var (
	ipinfoHeader = []string{
		"start_ip", "end_ip", "country", "country_name", "continent", "continent_name",
	}
	ipapiHeader = []string{
		"ip_version", "start_ip", "end_ip", "continent", "country_code", "country",
		"state", "city", "zip", "timezone", "latitude", "longitude", "accuracy",
	}
)

// knownSchemas are tried in order; the first match wins.
var knownSchemas = []Schema{
	{
		Name:       "ipinfo.io country.csv",
		Columns:    Columns{StartIP: 0, EndIP: 1, CountryCode: 2},
		SkipHeader: true,
		Match:      headerMatcher(ipinfoHeader),
	},
	{
		// headerless, so the first record is data
		Name:    "dbip-country-lite",
		Columns: Columns{StartIP: 0, EndIP: 1, CountryCode: 2},
		Match:   isDottedTriple,
	},
	{
		Name:       "ipapi.is csv",
		Columns:    Columns{StartIP: 1, EndIP: 2, CountryCode: 4},
		SkipHeader: true,
		Match:      headerMatcher(ipapiHeader),
	},
}

func headerMatcher(header []string) func([]string) bool {
	return func(first []string) bool {
		if len(first) != len(header) {
			return false
		}
		for i := range header {
			if first[i] != header[i] {
				return false
			}
		}
		return true
	}
}

// isDottedTriple only looks for '.', so headerless IPv6-only exports do not
// match and fall through to the defaults.
func isDottedTriple(first []string) bool {
	return len(first) == 3 &&
		strings.Contains(first[0], ".") &&
		strings.Contains(first[1], ".")
}

// Detection is the resolved layout of one source.
type Detection struct {
	Schema    string
	Matched   bool
	Columns   Columns
	SkipFirst bool
}

// DetectSchema classifies a source by its first record. When no known schema
// matches, the caller's columns and header flag are used unchanged.
func DetectSchema(first []string, defaults Columns, ignoreFirstRow bool) Detection {
	for _, s := range knownSchemas {
		if s.Match(first) {
			logrus.Infof("%s format matched", s.Name)
			return Detection{
				Schema:    s.Name,
				Matched:   true,
				Columns:   s.Columns,
				SkipFirst: s.SkipHeader,
			}
		}
	}

	logrus.Infof("no known format matched, using columns start=%d end=%d country=%d",
		defaults.StartIP, defaults.EndIP, defaults.CountryCode)
	return Detection{
		Schema:    "manual",
		Columns:   defaults,
		SkipFirst: ignoreFirstRow,
	}
}
