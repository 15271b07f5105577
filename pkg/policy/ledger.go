package policy

// AssertionInfo is the outcome of one live assertion instance.
type AssertionInfo struct {
	assertion Assertion
	asserted  bool
	reason    string
}

// Assertion returns the assertion the outcome belongs to.
func (ai *AssertionInfo) Assertion() Assertion { return ai.assertion }

// IsAsserted reports whether the assertion was satisfied.
func (ai *AssertionInfo) IsAsserted() bool { return ai.asserted }

// Reason returns why the assertion was denied, if it was.
func (ai *AssertionInfo) Reason() string { return ai.reason }

func (ai *AssertionInfo) setAsserted() {
	ai.asserted = true
	ai.reason = ""
}

func (ai *AssertionInfo) setNotAsserted(reason string) {
	ai.asserted = false
	ai.reason = reason
}

// Ledger records assertion outcomes for a single processing pass. It is not
// safe for concurrent use.
type Ledger struct {
	infos map[QName][]*AssertionInfo
	order []*AssertionInfo
}

// NewLedger indexes every assertion of the policy, nested ones included.
func NewLedger(p *Policy) *Ledger {
	l := &Ledger{infos: make(map[QName][]*AssertionInfo)}
	if p == nil {
		return l
	}
	for _, a := range p.Assertions {
		l.add(a)
	}
	return l
}

func (l *Ledger) add(a Assertion) {
	ai := &AssertionInfo{assertion: a}
	l.infos[a.Name()] = append(l.infos[a.Name()], ai)
	l.order = append(l.order, ai)
	if parent, ok := a.(Parent); ok {
		for _, child := range parent.Children() {
			l.add(child)
		}
	}
}

// Get returns every live instance registered under name.
func (l *Ledger) Get(name QName) []*AssertionInfo {
	return l.infos[name]
}

// Assertions returns the assertions registered under name.
func (l *Ledger) Assertions(name QName) []Assertion {
	infos := l.infos[name]
	out := make([]Assertion, 0, len(infos))
	for _, ai := range infos {
		out = append(out, ai.assertion)
	}
	return out
}

// Has reports whether any assertion is registered under name.
func (l *Ledger) Has(name QName) bool {
	return len(l.infos[name]) > 0
}

// Assert marks every instance of a as satisfied.
func (l *Ledger) Assert(a Assertion) {
	for _, ai := range l.infos[a.Name()] {
		if ai.assertion == a {
			ai.setAsserted()
		}
	}
}

// AssertQName marks every instance registered under name as satisfied.
func (l *Ledger) AssertQName(name QName) {
	for _, ai := range l.infos[name] {
		ai.setAsserted()
	}
}

// FindAndAssert asserts every instance under name and returns the
// assertions so the caller can drive a build step from them.
func (l *Ledger) FindAndAssert(name QName) []Assertion {
	infos := l.infos[name]
	if len(infos) == 0 {
		return nil
	}
	out := make([]Assertion, 0, len(infos))
	for _, ai := range infos {
		ai.setAsserted()
		out = append(out, ai.assertion)
	}
	return out
}

// Deny records reason against every instance of a. A non-optional
// assertion yields a *NotSatisfiedError that must abort the pass; an
// optional one yields nil.
func (l *Ledger) Deny(a Assertion, reason string) error {
	l.markNotAsserted(a, reason)
	if a.IsOptional() {
		return nil
	}
	return &NotSatisfiedError{Assertion: a.Name(), Reason: reason}
}

// Fail denies a because of err. The result is fatal regardless of
// optionality.
func (l *Ledger) Fail(a Assertion, err error) error {
	l.markNotAsserted(a, err.Error())
	return &NotSatisfiedError{Assertion: a.Name(), Reason: err.Error(), Err: err}
}

func (l *Ledger) markNotAsserted(a Assertion, reason string) {
	for _, ai := range l.infos[a.Name()] {
		if ai.assertion == a {
			ai.setNotAsserted(reason)
		}
	}
}

// Unsatisfied returns the instances not asserted so far, in policy order.
func (l *Ledger) Unsatisfied() []*AssertionInfo {
	var out []*AssertionInfo
	for _, ai := range l.order {
		if !ai.asserted {
			out = append(out, ai)
		}
	}
	return out
}
