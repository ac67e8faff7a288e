package app

import (
	"testing"
)

func TestCommands_Registered(t *testing.T) {
	want := map[string]bool{"track": false, "classify": false, "history": false, "outbox": false, "doctor": false, "mcp": false}
	for _, cmd := range rootCmd.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("%s subcommand not registered on rootCmd", name)
		}
	}
}
