package rules

import (
	"regexp"
	"sync"
	"testing"
)

func mustDirect(t *testing.T, patterns ...Pattern) *DirectRule {
	t.Helper()
	r, err := NewDirectRule(patterns)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func mustProxy(t *testing.T, server string, patterns ...Pattern) *ProxyRule {
	t.Helper()
	r, err := NewProxyRule(patterns, server, "", "")
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestResolveFirstMatch(t *testing.T) {
	t.Parallel()

	rule1 := mustDirect(t, Literal("127.0.0.1"), Literal("::1"))
	rule2 := mustProxy(t, "127.0.0.1:1080", Literal("192.168.0.2"), Regexp(regexp.MustCompile(`(?:\A|\.)example\.com\z`)))
	set := NewRuleSet(rule1, rule2)

	tests := []struct {
		host string
		want Rule
	}{
		{host: "127.0.0.1", want: rule1},
		{host: "::1", want: rule1},
		{host: "192.168.0.2", want: rule2},
		{host: "example.com", want: rule2},
		{host: "test.example.com", want: rule2},
		{host: "testexample.com"},
	}

	for _, tt := range tests {
		if got := set.Resolve(tt.host); got != tt.want {
			t.Fatalf("Resolve(%q) = %v want %v", tt.host, got, tt.want)
		}
	}
}

func TestResolveSubdomainRules(t *testing.T) {
	t.Parallel()

	proxy := mustProxy(t, "127.0.0.1:1080", Regexp(regexp.MustCompile(`^.*\.example\.com$`)))
	direct := mustDirect(t, Literal("localhost"))
	set := NewRuleSet(proxy, direct)

	if got := set.Resolve("api.example.com"); got != proxy {
		t.Fatalf("api.example.com resolved to %v", got)
	}
	if got := set.Resolve("localhost"); got != direct {
		t.Fatalf("localhost resolved to %v", got)
	}
	if got := set.Resolve("example.com"); got != nil {
		t.Fatalf("example.com resolved to %v", got)
	}
}

func TestResolveOrderWins(t *testing.T) {
	t.Parallel()

	first := mustDirect(t, Regexp(regexp.MustCompile(``)))
	second := mustProxy(t, "127.0.0.1:1080", Literal("nginx"))

	if got := NewRuleSet(first, second).Resolve("nginx"); got != first {
		t.Fatalf("got %v want first rule", got)
	}
	if got := NewRuleSet(second, first).Resolve("nginx"); got != second {
		t.Fatalf("got %v want second rule", got)
	}
}

func TestReconfiguration(t *testing.T) {
	t.Parallel()

	build := func() *RuleSet {
		return NewRuleSet(
			mustDirect(t, Literal("localhost")),
			mustProxy(t, "10.0.0.1:1080", Regexp(regexp.MustCompile(`\.internal\z`))),
		)
	}

	old := NewRuleSet(mustProxy(t, "10.9.9.9:1080", Literal("localhost")))
	_ = old.Resolve("localhost")

	replaced, fresh := build(), build()
	for _, host := range []string{"localhost", "db.internal", "example.com"} {
		a, b := replaced.Resolve(host), fresh.Resolve(host)
		if (a == nil) != (b == nil) {
			t.Fatalf("%s: %v vs %v", host, a, b)
		}
		if a != nil && a.Direct() != b.Direct() {
			t.Fatalf("%s: direct %v vs %v", host, a.Direct(), b.Direct())
		}
	}
}

func TestNilRuleSet(t *testing.T) {
	t.Parallel()

	var set *RuleSet
	if set.Resolve("anything") != nil || set.Len() != 0 || set.Rules() != nil {
		t.Fatal("nil rule set should be empty")
	}
	if NewRuleSet().Resolve("anything") != nil {
		t.Fatal("empty rule set should match nothing")
	}

	r := mustDirect(t, Literal("a"))
	set = NewRuleSet(nil, r, nil)
	if set.Len() != 1 || set.Resolve("a") != r {
		t.Fatal("nil rules should be skipped")
	}
}

func TestRulesCopy(t *testing.T) {
	t.Parallel()

	r := mustDirect(t, Literal("a"))
	set := NewRuleSet(r)
	rules := set.Rules()
	rules[0] = mustDirect(t, Literal("b"))

	if set.Len() != 1 || set.Resolve("a") != r {
		t.Fatal("Rules should return a copy")
	}

	patterns := r.HostPatterns()
	patterns[0] = Literal("b")
	if !r.Match("a") || r.HostPatterns()[0].String() != "a" {
		t.Fatal("HostPatterns should return a copy")
	}
}

func TestConcurrentResolve(t *testing.T) {
	t.Parallel()

	set := NewRuleSet(
		mustDirect(t, Literal("localhost")),
		mustProxy(t, "127.0.0.1:1080", Regexp(regexp.MustCompile(`\.example\.com\z`))),
	)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 1000 {
				if set.Resolve("www.example.com") == nil || set.Resolve("localhost") == nil {
					t.Error("lookup failed")
					return
				}
			}
		}()
	}
	wg.Wait()
}
