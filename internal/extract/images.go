package extract

import (
	"slices"
	"strings"

	"github.com/go-scripts/wikicrawl/internal/types"
)

// ImagePolicy filters logos, avatars and other chrome out of page images.
// Each denylist entry is matched as a substring of the source URL and as
// an exact alt text.
type ImagePolicy struct {
	Denylist []string
}

// Allows reports whether img has both a source and alt text and matches
// no denylist entry.
func (p ImagePolicy) Allows(img types.Image) bool {
	if img.Src == "" || img.Alt == "" {
		return false
	}
	for _, entry := range p.Denylist {
		if entry != "" && strings.Contains(img.Src, entry) {
			return false
		}
	}
	return !slices.Contains(p.Denylist, img.Alt)
}
