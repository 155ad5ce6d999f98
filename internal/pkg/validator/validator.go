package validator

// Validator validates request and domain structs.
type Validator interface {
	Validate(data any) error
}

var _ Validator = (*V10Validator)(nil)
