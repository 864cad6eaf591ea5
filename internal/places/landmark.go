package places

import "strings"

// landmarkTokens flags a query as a landmark/transit-hub lookup rather
// than a local business search — "station", "airport", "terminal", and
// "university" name the cases that need to span a wide area rather than
// stay biased around the caller's coordinates. No upstream source for
// this list survived retrieval, so the Korean-market equivalents added
// here are a reconstruction tuned to the rest of the service's target
// market, not a port of anything recovered from elsewhere.
var landmarkTokens = []string{
	"station", "airport", "terminal", "university",
	"역", "공항", "터미널", "대학교", "대학",
}

// isLandmarkQuery reports whether q looks like a landmark/transit-hub
// lookup that should search nationally rather than apply a circular bias.
func isLandmarkQuery(q string) bool {
	lower := strings.ToLower(q)
	for _, tok := range landmarkTokens {
		if strings.Contains(lower, strings.ToLower(tok)) {
			return true
		}
	}
	return false
}
