package policy

// Policy is a single normalized policy alternative.
type Policy struct {
	Assertions []Assertion
}

// New returns a policy holding the given top-level assertions.
func New(assertions ...Assertion) *Policy {
	return &Policy{Assertions: assertions}
}

// Binding returns the first binding assertion, or nil.
func (p *Policy) Binding() *Binding {
	for _, a := range p.Assertions {
		if b, ok := a.(*Binding); ok {
			return b
		}
	}
	return nil
}

// SupportingTokens returns the supporting token assertions in policy order.
func (p *Policy) SupportingTokens() []*SupportingTokens {
	var out []*SupportingTokens
	for _, a := range p.Assertions {
		if st, ok := a.(*SupportingTokens); ok {
			out = append(out, st)
		}
	}
	return out
}

// Walk calls fn for every assertion of the policy, depth first.
func (p *Policy) Walk(fn func(Assertion)) {
	for _, a := range p.Assertions {
		walk(a, fn)
	}
}

func walk(a Assertion, fn func(Assertion)) {
	fn(a)
	if parent, ok := a.(Parent); ok {
		for _, child := range parent.Children() {
			walk(child, fn)
		}
	}
}
