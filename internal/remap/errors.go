package remap

import (
	"errors"
	"fmt"
)

// ErrValidation matches every rejected remapping via errors.Is
var ErrValidation = errors.New("remapping rejected")

// ErrPersistence reports that rules changed in memory but could not be
// written; the durable copy may be stale
var ErrPersistence = errors.New("remapping rules not persisted")

// Reason is why a remapping was rejected
type Reason string

const (
	ReasonMalformed      Reason = "malformed"
	ReasonSelfMap        Reason = "self_map"
	ReasonReservedTarget Reason = "reserved_target"
	ReasonCycle          Reason = "cycle"
	ReasonChain          Reason = "chain"
)

// ValidationError describes a rejected remapping. Nothing is mutated when
// it is returned.
type ValidationError struct {
	Reason  Reason
	From    string
	To      string
	Owner   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("cannot remap %s to %s for %s (%s): %s", e.From, e.To, e.Owner, e.Reason, e.Message)
}

// Is lets errors.Is(err, ErrValidation) match
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ReasonOf extracts the rejection reason from err, if any
func ReasonOf(err error) (Reason, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Reason, true
	}
	return "", false
}
