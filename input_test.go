package main

import "testing"

func TestKeyStateDirection(t *testing.T) {
	tests := []struct {
		name string
		keys map[string]bool
		want float64
	}{
		{"none", nil, 0},
		{"up", map[string]bool{"W": true}, -1},
		{"down", map[string]bool{"down": true}, 1},
		{"both", map[string]bool{"ArrowUp": true, "s": true}, 0},
		{"released", map[string]bool{"w": false}, 0},
		{"unknown", map[string]bool{"space": true}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := KeyState{}
			k.Merge(tt.keys)
			if got := k.Direction(); got != tt.want {
				t.Errorf("Direction() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKeyStateMergeKeepsUnreported(t *testing.T) {
	k := KeyState{}
	k.Merge(map[string]bool{"w": true})
	k.Merge(map[string]bool{"ArrowDown": false})
	if k.Direction() != -1 {
		t.Error("a report about one key must not clear another")
	}
	k.Merge(map[string]bool{"w": false})
	if len(k) != 0 {
		t.Errorf("released keys should be dropped, have %v", k)
	}
}
