package config

import "testing"

func TestWorkdirSuffix(t *testing.T) {
	cases := []struct {
		noFlow, noBranch bool
		want             string
	}{
		{false, false, ""},
		{true, false, "_no_flow"},
		{false, true, "_no_branch"},
		{true, true, "_no_flow_no_branch"},
	}
	for _, c := range cases {
		cfg := &Config{NoFlow: c.noFlow, NoBranch: c.noBranch}
		if got := cfg.WorkdirSuffix(); got != c.want {
			t.Errorf("WorkdirSuffix(no_flow=%v, no_branch=%v) = %q, want %q", c.noFlow, c.noBranch, got, c.want)
		}
	}
}
