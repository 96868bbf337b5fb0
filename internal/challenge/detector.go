// Package challenge waits out anti-bot interstitials while simulating pointer activity.
package challenge

import "strings"

var defaultMarkers = []string{
	"verifying you are human",
	"just a moment",
}

// Detector recognizes interstitial pages by lower-cased text markers.
type Detector struct {
	markers []string
}

// NewDetector creates a detector. With no markers it uses the Cloudflare defaults.
func NewDetector(markers ...string) *Detector {
	if len(markers) == 0 {
		markers = defaultMarkers
	}
	lowered := make([]string, 0, len(markers))
	for _, m := range markers {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
			lowered = append(lowered, m)
		}
	}
	return &Detector{markers: lowered}
}

// Detect reports whether content still shows an interstitial.
func (d *Detector) Detect(content string) bool {
	lower := strings.ToLower(content)
	for _, marker := range d.markers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
