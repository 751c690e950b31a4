package acquisition

import (
	"errors"
	"fmt"
)

// Named invariant violations. [Validate] wraps every violation it finds in a
// [*ValidationError]; callers can match individual causes with errors.Is.
var (
	// ErrRequirementExclusive is reported when a requirement references
	// both an item and a currency, or neither.
	ErrRequirementExclusive = errors.New("requirement must reference exactly one of item or currency")

	// ErrQuantityInvalid is reported when a quantity is below 1.
	ErrQuantityInvalid = errors.New("quantity must be at least 1")

	// ErrIngredientCount is reported when a mystic_forge acquisition does
	// not carry exactly four resolved requirements.
	ErrIngredientCount = errors.New("mystic_forge requires exactly 4 resolved ingredients")

	// ErrQuantityRange is reported when the variable-output bounds are
	// inconsistent: one of min/max missing, min != outputQuantity, or
	// max < min.
	ErrQuantityRange = errors.New("output quantity range is inconsistent")

	// ErrMissingKindField is reported when a kind-required top-level field
	// (vendorName, trackName, containerName, nodeName, source item id) is
	// absent.
	ErrMissingKindField = errors.New("kind-required field is missing")

	// ErrUnknownKind is reported when the acquisition kind is not one of
	// the recognised variants.
	ErrUnknownKind = errors.New("unknown acquisition kind")
)

// ValidationError reports every invariant violated by a single acquisition.
// It wraps the named violation errors above, so both errors.As (for the
// aggregate) and errors.Is (for individual causes) work.
type ValidationError struct {
	// Kind is the acquisition kind the record claimed.
	Kind Kind

	// Violations holds one wrapped error per violated invariant.
	Violations []error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s acquisition: %v", e.Kind, errors.Join(e.Violations...))
}

// Unwrap exposes the individual violations to errors.Is / errors.As.
func (e *ValidationError) Unwrap() []error { return e.Violations }

// Validate checks the cross-field invariants of a fully resolved acquisition.
// It never repairs; it only accepts (nil) or rejects (*ValidationError).
//
// Invariants:
//   - Kind is recognised.
//   - Every requirement references exactly one of item/currency, quantity ≥ 1.
//   - OutputQuantity ≥ 1.
//   - Min/max output bounds: both present or both absent; min equals
//     OutputQuantity; max ≥ min.
//   - mystic_forge carries exactly 4 resolved requirements.
//   - Kind-required fields are present (vendorName for vendor, trackName for
//     wvw_reward/pvp_reward, containerName for container, nodeName for
//     resource_node, source item id for salvage).
func Validate(acq Acquisition) error {
	var violations []error

	if !acq.Kind.IsValid() {
		violations = append(violations, fmt.Errorf("%w: %q", ErrUnknownKind, acq.Kind))
	}

	for i, req := range acq.Requirements {
		if req.IsItem() == req.IsCurrency() {
			violations = append(violations, fmt.Errorf("requirement[%d]: %w", i, ErrRequirementExclusive))
		}
		if req.Quantity < 1 {
			violations = append(violations, fmt.Errorf("requirement[%d]: %w (got %d)", i, ErrQuantityInvalid, req.Quantity))
		}
	}

	if acq.OutputQuantity < 1 {
		violations = append(violations, fmt.Errorf("outputQuantity: %w (got %d)", ErrQuantityInvalid, acq.OutputQuantity))
	}

	switch {
	case acq.OutputQuantityMin == nil && acq.OutputQuantityMax == nil:
		// No bounds: fine.
	case acq.OutputQuantityMin == nil || acq.OutputQuantityMax == nil:
		violations = append(violations, fmt.Errorf("%w: min and max must be set together", ErrQuantityRange))
	default:
		if *acq.OutputQuantityMin != acq.OutputQuantity {
			violations = append(violations, fmt.Errorf("%w: min %d != outputQuantity %d",
				ErrQuantityRange, *acq.OutputQuantityMin, acq.OutputQuantity))
		}
		if *acq.OutputQuantityMax < *acq.OutputQuantityMin {
			violations = append(violations, fmt.Errorf("%w: max %d < min %d",
				ErrQuantityRange, *acq.OutputQuantityMax, *acq.OutputQuantityMin))
		}
	}

	if acq.Kind == KindMysticForge && len(acq.Requirements) != 4 {
		violations = append(violations, fmt.Errorf("%w (got %d)", ErrIngredientCount, len(acq.Requirements)))
	}

	switch acq.Kind {
	case KindVendor:
		if acq.VendorName == "" {
			violations = append(violations, fmt.Errorf("%w: vendorName", ErrMissingKindField))
		}
	case KindWvWReward, KindPvPReward:
		if acq.TrackName == "" {
			violations = append(violations, fmt.Errorf("%w: trackName", ErrMissingKindField))
		}
	case KindContainer:
		if acq.ContainerName == "" {
			violations = append(violations, fmt.Errorf("%w: containerName", ErrMissingKindField))
		}
	case KindResourceNode:
		if acq.NodeName == "" {
			violations = append(violations, fmt.Errorf("%w: nodeName", ErrMissingKindField))
		}
	case KindSalvage:
		if acq.SourceItemID <= 0 {
			violations = append(violations, fmt.Errorf("%w: salvage source item id", ErrMissingKindField))
		}
	}

	if len(violations) == 0 {
		return nil
	}
	return &ValidationError{Kind: acq.Kind, Violations: violations}
}

// ValidateItem validates every acquisition on the item. An item with any
// invalid acquisition is rejected as a whole; this is the acceptance gate
// before persistence.
func ValidateItem(it *Item) error {
	if it.ID <= 0 {
		return fmt.Errorf("acquisition: item id must be positive, got %d", it.ID)
	}
	if it.Name == "" {
		return fmt.Errorf("acquisition: item %d has no name", it.ID)
	}
	var errs []error
	for i, acq := range it.Acquisitions {
		if err := Validate(acq); err != nil {
			errs = append(errs, fmt.Errorf("acquisition[%d]: %w", i, err))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("acquisition: item %d rejected: %w", it.ID, errors.Join(errs...))
}
