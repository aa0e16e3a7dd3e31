package deals

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
)

// Fingerprint derives the stable identity key for an itinerary: the same
// route, departure instant, airline set, and canonical link always hash to
// the same value no matter how often the offer is re-observed. Price is
// excluded on purpose; it varies between observations of the same itinerary.
//
// The digest is 128-bit and not security sensitive. A collision between
// genuinely distinct itineraries is treated as the same deal.
func Fingerprint(offer Offer) string {
	raw := fmt.Sprintf("%s|%d|%s|%s",
		offer.Route(),
		offer.DepartureAt.Unix(),
		strings.Join(offer.sortedAirlines(), ","),
		offer.DeepLink,
	)
	sum := md5.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}
