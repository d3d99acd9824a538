package sim

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// InteractionType is the multipole order of the donor-acceptor coupling.
type InteractionType string

const (
	// DipoleDipole couples with a 1/r^6 distance dependence.
	DipoleDipole InteractionType = "DD"
	// DipoleQuadrupole couples with a 1/r^8 distance dependence.
	DipoleQuadrupole InteractionType = "DQ"
	// QuadrupoleQuadrupole couples with a 1/r^10 distance dependence.
	QuadrupoleQuadrupole InteractionType = "QQ"
)

// ErrUnknownInteraction is returned for any interaction type outside DD, DQ and QQ.
var ErrUnknownInteraction = errors.New("unknown interaction type")

// interactionExponents maps each recognized interaction type to its distance exponent.
// Shared by Exponent() and ParseInteractionType() to avoid duplication.
var interactionExponents = map[InteractionType]int{
	DipoleDipole:         6,
	DipoleQuadrupole:     8,
	QuadrupoleQuadrupole: 10,
}

// Exponent returns the distance exponent s for the interaction type.
func (it InteractionType) Exponent() (int, error) {
	s, ok := interactionExponents[it]
	if !ok {
		return 0, fmt.Errorf("%w %q (valid: %s)", ErrUnknownInteraction, string(it), strings.Join(ValidInteractionNames(), ", "))
	}
	return s, nil
}

// ParseInteractionType converts a user-supplied name (case-insensitive) to an InteractionType.
func ParseInteractionType(name string) (InteractionType, error) {
	it := InteractionType(strings.ToUpper(strings.TrimSpace(name)))
	if _, err := it.Exponent(); err != nil {
		return "", err
	}
	return it, nil
}

// ValidInteractionNames returns the recognized interaction type names in sorted order.
func ValidInteractionNames() []string {
	names := make([]string, 0, len(interactionExponents))
	for it := range interactionExponents {
		names = append(names, string(it))
	}
	sort.Strings(names)
	return names
}
