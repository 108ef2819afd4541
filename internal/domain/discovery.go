package domain

// DiscoveredHost is one result handed over by a discovery collaborator.
// Only IP is required.
type DiscoveredHost struct {
	IP     string `json:"ip" validate:"required,ipv4"`
	Name   string `json:"name,omitempty" validate:"omitempty,max=128"`
	Type   string `json:"type,omitempty"`
	Status string `json:"status,omitempty" validate:"omitempty,oneof=online offline maintenance error"`
	Ports  []int  `json:"ports,omitempty" validate:"omitempty,dive,min=1,max=65535"`
	MAC    string `json:"mac,omitempty" validate:"omitempty,mac"`
	Mask   string `json:"mask,omitempty" validate:"omitempty,ipv4"`
}

// DefaultName returns the name used when the collaborator supplied none
func (h DiscoveredHost) DefaultName() string {
	if h.Name != "" {
		return h.Name
	}
	return "Host-" + LastOctet(h.IP)
}
