package lookup

import "testing"

func TestArgs(t *testing.T) {
	args := NewArgs([]string{"api_token=secret", "empty=", "noequals", "=orphan"})

	if got := args.Lookup("api_token"); got != "secret" {
		t.Errorf("Lookup(api_token) = %q, want secret", got)
	}
	if got := args.Lookup("empty"); got != "" {
		t.Errorf("Lookup(empty) = %q, want \"\"", got)
	}
	if got := args.Lookup("noequals"); got != "" {
		t.Errorf("Lookup(noequals) = %q, want \"\"", got)
	}
	if got := args.Lookup("missing"); got != "" {
		t.Errorf("Lookup(missing) = %q, want \"\"", got)
	}
}

func TestEnv(t *testing.T) {
	env := NewEnv(func(name string) string {
		if name == "API_TOKEN" {
			return "from-env"
		}
		return ""
	})
	if got := env.Lookup("API_TOKEN"); got != "from-env" {
		t.Errorf("Lookup(API_TOKEN) = %q, want from-env", got)
	}
	if got := env.Lookup("OTHER"); got != "" {
		t.Errorf("Lookup(OTHER) = %q, want \"\"", got)
	}
}

func TestChainPrecedence(t *testing.T) {
	chain := NewChain(
		Map{"token": "from-args"},
		Map{"token": "from-env", "only_env": "env-value"},
	)

	// Earlier sources win.
	if got := chain.Lookup("token"); got != "from-args" {
		t.Errorf("Lookup(token) = %q, want from-args", got)
	}
	if got := chain.Lookup("only_env"); got != "env-value" {
		t.Errorf("Lookup(only_env) = %q, want env-value", got)
	}
	if got := chain.Lookup("missing"); got != "" {
		t.Errorf("Lookup(missing) = %q, want \"\"", got)
	}
	if got := chain.Lookup(""); got != "" {
		t.Errorf("Lookup(\"\") = %q, want \"\"", got)
	}
}

func TestChainCaseFolding(t *testing.T) {
	chain := NewChain(Map{"API_TOKEN": "upper-value"})

	// Config names a lower-case credential; the environment carries it
	// upper-case. Exact form is tried first, then upper, then lower.
	if got := chain.Lookup("api_token"); got != "upper-value" {
		t.Errorf("Lookup(api_token) = %q, want upper-value", got)
	}

	exact := NewChain(Map{"Mixed_Case": "exact", "MIXED_CASE": "upper"})
	if got := exact.Lookup("Mixed_Case"); got != "exact" {
		t.Errorf("exact form should win: got %q", got)
	}
}

func TestChainEmptyValueFallsThrough(t *testing.T) {
	// An empty value is indistinguishable from unset: the next source wins.
	chain := NewChain(Map{"token": ""}, Map{"token": "fallback"})
	if got := chain.Lookup("token"); got != "fallback" {
		t.Errorf("Lookup(token) = %q, want fallback", got)
	}
}
