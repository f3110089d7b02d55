package main

var (
	upKeys   = []string{"w", "W", "ArrowUp", "up"}
	downKeys = []string{"s", "S", "ArrowDown", "down"}
)

// KeyState is the held-key set of one paddle slot. Inbound playerInput
// messages are merged into it key by key, so a message that only reports
// one key leaves the others as they were.
type KeyState map[string]bool

// Merge folds keys into the held set
func (k KeyState) Merge(keys map[string]bool) {
	for key, held := range keys {
		if !isKnownKey(key) {
			continue
		}
		if held {
			k[key] = true
		} else {
			delete(k, key)
		}
	}
}

// Direction returns -1 for up, 1 for down, 0 for none or both.
func (k KeyState) Direction() float64 {
	up, down := false, false
	for _, key := range upKeys {
		up = up || k[key]
	}
	for _, key := range downKeys {
		down = down || k[key]
	}
	switch {
	case up && !down:
		return -1
	case down && !up:
		return 1
	}
	return 0
}

func isKnownKey(key string) bool {
	for _, k := range upKeys {
		if k == key {
			return true
		}
	}
	for _, k := range downKeys {
		if k == key {
			return true
		}
	}
	return false
}
