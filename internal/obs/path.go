package obs

import "strings"

// CanonicalPath collapses resource identifiers in request paths so metric
// label cardinality stays bounded.
func CanonicalPath(raw string) string {
	path := raw
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}

	segs := strings.Split(strings.TrimPrefix(path, "/"), "/")
	switch {
	case len(segs) == 3 && segs[0] == "api" && segs[1] == "publish":
		return "/api/publish/:tokenId"
	case len(segs) >= 3 && segs[0] == "api" && segs[1] == "mpm":
		if len(segs) == 4 && segs[3] == "refresh" {
			return "/api/mpm/:policyId/refresh"
		}
		if len(segs) == 3 {
			return "/api/mpm/:policyId"
		}
	case len(segs) == 4 && segs[0] == "api" && segs[1] == "tokens" && segs[2] == "real":
		return "/api/tokens/real/:assetId"
	case len(segs) == 3 && segs[0] == "api" && segs[1] == "memecoins":
		// Factory control verbs keep their own label.
		if segs[2] != "generate" && segs[2] != "batch" && segs[2] != "factory" {
			return "/api/memecoins/:id"
		}
	case len(segs) == 3 && segs[0] == "risk":
		return "/risk/:policyId/" + segs[2]
	}
	return path
}
