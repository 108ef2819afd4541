// Package validation checks editor input against struct tags and the few
// rules tags cannot express.
package validation

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"netlayers/internal/domain"
)

var (
	// validate is a singleton validator instance
	validate *validator.Validate

	MaxNameLength = 128
	MinVLAN       = 1
	MaxVLAN       = 4094
)

func init() {
	validate = validator.New()
	if err := validate.RegisterValidation("devicetype", deviceType); err != nil {
		panic(err)
	}
}

// deviceType accepts the names listed in domain.DeviceTypes
func deviceType(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	for _, t := range domain.DeviceTypes {
		if string(t) == name {
			return true
		}
	}
	return false
}

// Struct validates any tagged struct and returns a *domain.ValidationError
// describing the first failing field
func Struct(v any) error {
	if err := validate.Struct(v); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// Node validates a node after defaults and patches were applied
func Node(n *domain.Node) error {
	if n == nil {
		return &domain.ValidationError{Field: "node", Reason: "node cannot be nil"}
	}
	if err := Struct(n); err != nil {
		return err
	}
	if n.L3.Mask != "" && !domain.ValidateMask(n.L3.Mask) {
		return &domain.ValidationError{Field: "L3.Mask", Reason: fmt.Sprintf("%q is not a contiguous netmask", n.L3.Mask)}
	}
	for _, p := range n.L1.Ports {
		if p < 1 || p > 65535 {
			return &domain.ValidationError{Field: "L1.Ports", Reason: fmt.Sprintf("port %d out of range", p)}
		}
	}
	return nil
}

// Connection validates the attributes of a connection
func Connection(c *domain.Connection) error {
	if c == nil {
		return &domain.ValidationError{Field: "connection", Reason: "connection cannot be nil"}
	}
	if c.IsSelfLoop() {
		return &domain.ValidationError{Field: "target", Reason: "self-loops are not allowed"}
	}
	if c.L2 != nil && c.L2.VLAN != 0 && (c.L2.VLAN < MinVLAN || c.L2.VLAN > MaxVLAN) {
		return &domain.ValidationError{Field: "L2.VLAN", Reason: fmt.Sprintf("must be between %d and %d", MinVLAN, MaxVLAN)}
	}
	return Struct(c)
}

// DiscoveredHost validates a record handed over by a discovery producer
func DiscoveredHost(h *domain.DiscoveredHost) error {
	if h == nil {
		return &domain.ValidationError{Field: "host", Reason: "record cannot be nil"}
	}
	if err := Struct(h); err != nil {
		return err
	}
	if h.Mask != "" && !domain.ValidateMask(h.Mask) {
		return &domain.ValidationError{Field: "Mask", Reason: fmt.Sprintf("%q is not a contiguous netmask", h.Mask)}
	}
	return nil
}

// formatValidationError converts validator errors to a more user-friendly format
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return &domain.ValidationError{Reason: err.Error()}
	}

	// Report the first failure
	for _, e := range validationErrs {
		field := trimNamespace(e.Namespace())
		param := e.Param()

		switch e.Tag() {
		case "required":
			return &domain.ValidationError{Field: field, Reason: "field is required"}
		case "min", "gte":
			return &domain.ValidationError{Field: field, Reason: "must be at least " + param}
		case "max", "lte":
			return &domain.ValidationError{Field: field, Reason: "must not exceed " + param}
		case "oneof":
			return &domain.ValidationError{Field: field, Reason: "must be one of: " + param}
		case "ipv4":
			return &domain.ValidationError{Field: field, Reason: fmt.Sprintf("%v is not an IPv4 address", e.Value())}
		case "devicetype":
			return &domain.ValidationError{Field: field, Reason: fmt.Sprintf("unknown device type %q", e.Value())}
		case "mac":
			return &domain.ValidationError{Field: field, Reason: fmt.Sprintf("%v is not a MAC address", e.Value())}
		default:
			return &domain.ValidationError{Field: field, Reason: fmt.Sprintf("validation failed (%s)", e.Tag())}
		}
	}

	return &domain.ValidationError{Reason: err.Error()}
}

// trimNamespace drops the root struct name: "Node.L3.IP" becomes "L3.IP"
func trimNamespace(ns string) string {
	for i := 0; i < len(ns); i++ {
		if ns[i] == '.' {
			return ns[i+1:]
		}
	}
	return ns
}
