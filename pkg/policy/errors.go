package policy

import (
	"errors"
	"fmt"
)

// ErrPolicyNotSatisfied matches every fatal assertion denial.
var ErrPolicyNotSatisfied = errors.New("policy not satisfied")

// NotSatisfiedError reports the first assertion a processing pass could not
// satisfy. Err is set when the denial was caused by another failure, such as
// a cryptographic error.
type NotSatisfiedError struct {
	Assertion QName
	Reason    string
	Err       error
}

func (e *NotSatisfiedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("policy assertion %s not satisfied: %s: %v", e.Assertion.Local, e.Reason, e.Err)
	}
	return fmt.Sprintf("policy assertion %s not satisfied: %s", e.Assertion.Local, e.Reason)
}

func (e *NotSatisfiedError) Unwrap() error { return e.Err }

func (e *NotSatisfiedError) Is(target error) bool {
	return target == ErrPolicyNotSatisfied
}
