package pkgname

import (
	"regexp"
	"strconv"
	"strings"
)

var normalizeRe = regexp.MustCompile(`[-_.]+`)

// Normalize applies PEP 503 normalization rules:
// - convert to lowercase
// - replace runs of '-', '_' and '.' with a single '-' character
//
// The normalized form is the only project identity used for lookups,
// redirects and JSON URLs.
func Normalize(name string) string {
	return normalizeRe.ReplaceAllString(strings.ToLower(name), "-")
}

// versionPart is one comparable fragment of a version string. Numeric
// fragments order numerically, textual fragments order lexically, and
// numeric fragments always sort after textual ones at the same position
// ("1.0.1" > "1.0rc1").
type versionPart struct {
	numeric bool
	num     int64
	text    string
}

var versionSplitRe = regexp.MustCompile(`[0-9]+|[a-z]+`)

func versionKey(version string) []versionPart {
	fragments := versionSplitRe.FindAllString(strings.ToLower(version), -1)
	parts := make([]versionPart, 0, len(fragments))
	for _, f := range fragments {
		if f[0] >= '0' && f[0] <= '9' {
			n, err := strconv.ParseInt(f, 10, 64)
			if err != nil {
				// Longer than int64; compare textually with leading
				// zeros stripped so "010" still equals "10".
				parts = append(parts, versionPart{text: strings.TrimLeft(f, "0")})
				continue
			}
			parts = append(parts, versionPart{numeric: true, num: n})
		} else {
			parts = append(parts, versionPart{text: f})
		}
	}
	return parts
}

// CompareVersions orders two version strings by natural packaging-version
// ordering. Returns -1, 0 or 1.
func CompareVersions(a, b string) int {
	ka, kb := versionKey(a), versionKey(b)
	for i := 0; i < len(ka) && i < len(kb); i++ {
		pa, pb := ka[i], kb[i]
		switch {
		case pa.numeric && pb.numeric:
			if pa.num != pb.num {
				if pa.num < pb.num {
					return -1
				}
				return 1
			}
		case pa.numeric != pb.numeric:
			// Numeric beats textual: 1.0.1 > 1.0rc1.
			if pa.numeric {
				return 1
			}
			return -1
		default:
			if pa.text != pb.text {
				if pa.text < pb.text {
					return -1
				}
				return 1
			}
		}
	}
	switch {
	case len(ka) < len(kb):
		// A trailing textual fragment marks a pre-release: 1.0a < 1.0.
		if !kb[len(ka)].numeric {
			return 1
		}
		return -1
	case len(ka) > len(kb):
		if !ka[len(kb)].numeric {
			return -1
		}
		return 1
	}
	return 0
}
