package config

import (
	"fmt"

	ini "gopkg.in/ini.v1"

	"github.com/die-net/socksify/internal/rules"
)

// LoadINI reads an INI rule file.
func LoadINI(path string) (*rules.RuleSet, error) {
	rs, err := ParseINI(path)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return rs, nil
}

// ParseINI parses INI rules from source, a file name or []byte.
func ParseINI(source any) (*rules.RuleSet, error) {
	f, err := ini.LoadSources(ini.LoadOptions{AllowShadows: true, SpaceBeforeInlineComment: true}, source)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for _, sec := range f.Sections() {
		if sec.Name() == ini.DefaultSection {
			if len(sec.Keys()) > 0 {
				return nil, fmt.Errorf("key %q outside of a rule section", sec.Keys()[0].Name())
			}
			continue
		}

		e, err := sectionEntry(sec)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", sec.Name(), err)
		}
		entries = append(entries, e)
	}
	return Build(entries)
}

func sectionEntry(sec *ini.Section) (Entry, error) {
	e := Entry{Name: sec.Name()}
	for _, k := range sec.Keys() {
		switch k.Name() {
		case "host":
			e.Hosts = append(e.Hosts, k.ValueWithShadows()...)
		case "pattern":
			e.Patterns = append(e.Patterns, k.ValueWithShadows()...)
		case "direct":
			v, err := k.Bool()
			if err != nil {
				return Entry{}, fmt.Errorf("direct: %w", err)
			}
			e.Direct = v
		case "server":
			e.Server = k.String()
		case "username":
			e.Username = k.String()
		case "password":
			e.Password = k.String()
		default:
			return Entry{}, fmt.Errorf("unknown key %q", k.Name())
		}
	}
	return e, nil
}
