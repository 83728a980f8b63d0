package validators

import (
	"math"
	"unicode/utf8"

	"github.com/anmolarora1/em/domain/config"
	"github.com/anmolarora1/em/domain/core/valueobjects"
	"github.com/anmolarora1/em/pkg/errors"
)

// ThoughtValidator validates thought values, ranks and paths before they reach a reducer
type ThoughtValidator struct {
	maxValueLength int
	maxDepth       int
	reservedValues map[string]struct{}
}

// NewThoughtValidator creates a validator from the domain rules
func NewThoughtValidator(cfg *config.DomainConfig) *ThoughtValidator {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &ThoughtValidator{
		maxValueLength: cfg.MaxValueLength,
		maxDepth:       cfg.MaxImportDepth,
		reservedValues: map[string]struct{}{
			valueobjects.RootToken:      {},
			valueobjects.EmptyToken:     {},
			valueobjects.SeparatorToken: {},
		},
	}
}

// ValidateValue validates a single thought value
func (v *ThoughtValidator) ValidateValue(value string) error {
	if err := v.validateValue(value); err != nil {
		return err
	}
	return nil
}

// ValidateRank rejects NaN and infinite ranks
func (v *ThoughtValidator) ValidateRank(rank float64) error {
	if math.IsNaN(rank) || math.IsInf(rank, 0) {
		return errors.ErrInvalidRank(rank)
	}
	return nil
}

// ValidatePath validates every segment of a path
func (v *ThoughtValidator) ValidatePath(path valueobjects.Path) error {
	validationErrors := errors.NewValidationErrors()

	if len(path) > v.maxDepth {
		validationErrors.Add("path", "path exceeds maximum depth")
	}

	for _, seg := range path {
		if err := v.validateValue(seg.Value); err != nil {
			validationErrors.AddError(err)
		}
		if err := v.ValidateRank(seg.Rank); err != nil {
			validationErrors.AddError(err.(*errors.DomainError))
		}
	}

	if validationErrors.HasErrors() {
		return validationErrors
	}
	return nil
}

// ValidateContext validates every value of a context
func (v *ThoughtValidator) ValidateContext(ctx valueobjects.Context) error {
	validationErrors := errors.NewValidationErrors()

	if len(ctx) > v.maxDepth {
		validationErrors.Add("context", "context exceeds maximum depth")
	}

	for _, value := range ctx {
		if err := v.validateValue(value); err != nil {
			validationErrors.AddError(err)
		}
	}

	if validationErrors.HasErrors() {
		return validationErrors
	}
	return nil
}

func (v *ThoughtValidator) validateValue(value string) *errors.DomainError {
	if n := utf8.RuneCountInString(value); n > v.maxValueLength {
		return errors.ErrValueTooLong(n, v.maxValueLength)
	}
	if _, ok := v.reservedValues[value]; ok {
		return errors.ErrReservedValue(value)
	}
	return nil
}
