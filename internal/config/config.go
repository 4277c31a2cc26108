package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/die-net/socksify/internal/rules"
)

// Entry is one rule as written in a rule file.
type Entry struct {
	Name     string   `yaml:"name"`
	Hosts    []string `yaml:"hosts"`
	Patterns []string `yaml:"patterns"`
	Direct   bool     `yaml:"direct"`
	Server   string   `yaml:"server"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
}

// Load reads the rule file at path, choosing the format by extension:
// .ini, or .yaml and .yml.
func Load(path string) (*rules.RuleSet, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".ini":
		return LoadINI(path)
	case ".yaml", ".yml":
		return LoadYAML(path)
	default:
		return nil, fmt.Errorf("config %s: unsupported file extension %q", path, ext)
	}
}

// Build compiles entries, in order, into a rule set.
func Build(entries []Entry) (*rules.RuleSet, error) {
	list := make([]rules.Rule, 0, len(entries))
	for i, e := range entries {
		r, err := e.Rule()
		if err != nil {
			name := e.Name
			if name == "" {
				name = fmt.Sprintf("#%d", i+1)
			}
			return nil, fmt.Errorf("rule %s: %w", name, err)
		}
		list = append(list, r)
	}
	return rules.NewRuleSet(list...), nil
}

// Rule validates e and compiles it.
func (e Entry) Rule() (rules.Rule, error) {
	if len(e.Hosts) == 0 && len(e.Patterns) == 0 {
		return nil, errors.New("no hosts or patterns")
	}

	patterns := make([]rules.Pattern, 0, len(e.Hosts)+len(e.Patterns))
	for _, h := range e.Hosts {
		if h == "" {
			return nil, errors.New("empty host")
		}
		patterns = append(patterns, rules.Literal(h))
	}
	for _, expr := range e.Patterns {
		p, err := rules.ParseRegexp(expr)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, p)
	}

	if e.Direct {
		if e.Server != "" || e.Username != "" || e.Password != "" {
			return nil, errors.New("direct rules take no server or credentials")
		}
		return rules.NewDirectRule(patterns)
	}

	if e.Server == "" {
		return nil, errors.New("missing server (or direct = true)")
	}
	if e.Username == "" && e.Password != "" {
		return nil, errors.New("password without username")
	}
	return rules.NewProxyRule(patterns, e.Server, e.Username, e.Password)
}
