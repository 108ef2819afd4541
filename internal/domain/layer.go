package domain

import (
	"fmt"
	"strings"
)

// Layer identifies one of the three topology views
type Layer string

const (
	LayerPhysical Layer = "l1" // cabling, ports, locations
	LayerDataLink Layer = "l2" // switching, VLANs
	LayerNetwork  Layer = "l3" // addressing
)

// AllLayers lists the layers in display order
var AllLayers = []Layer{LayerPhysical, LayerDataLink, LayerNetwork}

// ParseLayer accepts "l1", "L1" or "1" style input
func ParseLayer(s string) (Layer, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "l1", "1", "physical":
		return LayerPhysical, nil
	case "l2", "2", "datalink", "data-link":
		return LayerDataLink, nil
	case "l3", "3", "network":
		return LayerNetwork, nil
	default:
		return "", &ValidationError{Field: "layer", Reason: fmt.Sprintf("unknown layer %q", s)}
	}
}

// Index returns the zero-based position of the layer in AllLayers
func (l Layer) Index() int {
	switch l {
	case LayerPhysical:
		return 0
	case LayerDataLink:
		return 1
	case LayerNetwork:
		return 2
	default:
		return -1
	}
}

// Valid reports whether l is one of the three known layers
func (l Layer) Valid() bool {
	return l.Index() >= 0
}

// Title returns the status bar label for the layer
func (l Layer) Title() string {
	return strings.ToUpper(string(l))
}
