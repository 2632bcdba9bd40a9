// IP-to-country geolocation for request logs, using MaxMind MMDB files.

package gateway

import (
	"net/netip"

	"github.com/oschwald/maxminddb-golang/v2"
)

// GeoChecker resolves IP addresses to ISO 3166-1 alpha-2 country codes.
type GeoChecker struct {
	reader *maxminddb.Reader
}

// OpenGeoDB opens an MMDB file for country lookups.
func OpenGeoDB(dbPath string) (*GeoChecker, error) {
	r, err := maxminddb.Open(dbPath)
	if err != nil {
		return nil, err
	}
	return &GeoChecker{reader: r}, nil
}

// Close releases the MMDB reader resources.
func (c *GeoChecker) Close() error {
	return c.reader.Close()
}

type countryRecord struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
}

// CountryCode returns the country code for the given IP string.
// Returns "local" for loopback, private, and unspecified IPs.
// Returns "" on parse or lookup error, or when no database is loaded.
func (c *GeoChecker) CountryCode(ipStr string) string {
	addr, err := netip.ParseAddr(ipStr)
	if err != nil {
		return ""
	}
	if addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() || addr.IsLinkLocalUnicast() {
		return "local"
	}
	if c == nil || c.reader == nil {
		return ""
	}
	var rec countryRecord
	if err := c.reader.Lookup(addr).Decode(&rec); err != nil {
		return ""
	}
	return rec.Country.ISOCode
}
