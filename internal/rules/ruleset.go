package rules

// RuleSet is an ordered list of rules. A nil *RuleSet is empty.
type RuleSet struct {
	rules []Rule
}

// NewRuleSet returns a rule set evaluating rules in order. Nil rules are
// skipped.
func NewRuleSet(rules ...Rule) *RuleSet {
	s := &RuleSet{rules: make([]Rule, 0, len(rules))}
	for _, r := range rules {
		if r != nil {
			s.rules = append(s.rules, r)
		}
	}
	return s
}

// Resolve returns the first rule matching host, or nil if none does.
func (s *RuleSet) Resolve(host string) Rule {
	if s == nil {
		return nil
	}
	for _, r := range s.rules {
		if r.Match(host) {
			return r
		}
	}
	return nil
}

// Len returns the number of rules.
func (s *RuleSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rules)
}

// Rules returns a copy of the rules in evaluation order.
func (s *RuleSet) Rules() []Rule {
	if s == nil {
		return nil
	}
	return append([]Rule(nil), s.rules...)
}
