package command

import "testing"

func TestValidateParams(t *testing.T) {
	tests := []struct {
		name      string
		action    string
		params    map[string]string
		reason    string // "" means accept
		parameter string
	}{
		{"load ok", "load", map[string]string{"slot": "s0000", "drive": "d0000"}, "", ""},
		{"load missing drive", "load", map[string]string{"slot": "s0000"}, "undefined", "drive"},
		{"load empty slot", "load", map[string]string{"slot": "", "drive": "d0000"}, "empty", "slot"},
		{"load extra param", "load", map[string]string{"slot": "s0000", "drive": "d0000", "speed": "fast"}, "unexpected", "speed"},
		{"unload ok", "unload", map[string]string{"drive": "d0000", "slot": "s0000"}, "", ""},
		{"transfer ok", "transfer", map[string]string{"source": "s0000", "target": "s0001"}, "", ""},
		{"transfer missing target", "transfer", map[string]string{"source": "s0000"}, "undefined", "target"},
		{"scan ok", "scan", map[string]string{"slot": "s0000"}, "", ""},
		{"park ok", "park", nil, "", ""},
		{"park with param", "park", map[string]string{"slot": "s0000"}, "unexpected", "slot"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, ok := actionSpecs[tt.action]
			if !ok {
				t.Fatalf("action %q not declared", tt.action)
			}
			cerr := spec.validateParams(tt.params)
			if tt.reason == "" {
				if cerr != nil {
					t.Fatalf("rejected: %v", cerr)
				}
				return
			}
			if cerr == nil {
				t.Fatal("accepted, want rejection")
			}
			if cerr.Type != ErrTypeParameter || cerr.Reason != tt.reason || cerr.Parameter != tt.parameter {
				t.Fatalf("got %s/%s param=%s, want %s/%s param=%s",
					cerr.Type, cerr.Reason, cerr.Parameter, ErrTypeParameter, tt.reason, tt.parameter)
			}
		})
	}
}

func TestRoute(t *testing.T) {
	tests := []struct {
		action   string
		params   map[string]string
		src, dst string
		ok       bool
	}{
		{"load", map[string]string{"slot": "s0000", "drive": "d0000"}, "s0000", "d0000", true},
		{"move", map[string]string{"slot": "s0000", "drive": "d0000"}, "s0000", "d0000", true},
		{"unload", map[string]string{"drive": "d0000", "slot": "s0000"}, "d0000", "s0000", true},
		{"transfer", map[string]string{"source": "s0000", "target": "s0001"}, "s0000", "s0001", true},
		{"scan", map[string]string{"slot": "s0000"}, "", "", false},
		{"park", nil, "", "", false},
	}
	for _, tt := range tests {
		src, dst, ok := route(tt.action, tt.params)
		if src != tt.src || dst != tt.dst || ok != tt.ok {
			t.Errorf("route(%s) = %q,%q,%v, want %q,%q,%v", tt.action, src, dst, ok, tt.src, tt.dst, tt.ok)
		}
	}
}

func TestFingerprintIgnoresParamOrder(t *testing.T) {
	a := fingerprint("load", map[string]string{"slot": "s0000", "drive": "d0000"})
	b := fingerprint("load", map[string]string{"drive": "d0000", "slot": "s0000"})
	if a != b {
		t.Fatalf("fingerprints differ for identical params: %q vs %q", a, b)
	}

	c := fingerprint("load", map[string]string{"slot": "s0001", "drive": "d0000"})
	if a == c {
		t.Fatal("fingerprints collide for different params")
	}
	d := fingerprint("unload", map[string]string{"slot": "s0000", "drive": "d0000"})
	if a == d {
		t.Fatal("fingerprints collide for different actions")
	}
}

func TestNormalizeAction(t *testing.T) {
	if got := normalizeAction("  LOAD "); got != "load" {
		t.Fatalf("normalizeAction = %q, want load", got)
	}
}
