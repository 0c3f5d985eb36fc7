// Package sources holds the per-site extraction strategies. Each strategy
// implements the same contract; the pipeline is agnostic to which one a
// source uses.
package sources

import (
	"fmt"

	"github.com/ternarybob/marquee/internal/interfaces"
)

// ForStrategy returns the extraction strategy registered under the given
// name
func ForStrategy(name string) (interfaces.Extractor, error) {
	switch name {
	case "almaz":
		return NewAlmazExtractor(), nil
	case "kinoteatr":
		return NewKinoteatrExtractor(), nil
	default:
		return nil, fmt.Errorf("unknown extraction strategy: %s", name)
	}
}
