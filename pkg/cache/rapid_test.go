package cache

import (
	"fmt"
	"testing"

	"pgregory.net/rapid"
)

// TestMessageRekeyRapid checks that any interleaving of adds, remaps and
// removes keeps every message reachable under exactly one key.
func TestMessageRekeyRapid(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := NewStore()
		model := make(map[string]*Message)

		keys := func() *rapid.Generator[string] {
			return rapid.SampledFrom([]string{
				"pending:a", "pending:b", "pending:c", "m1", "m2", "m3",
			})
		}

		steps := rapid.IntRange(1, 40).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			switch rapid.IntRange(0, 2).Draw(t, fmt.Sprintf("op%d", i)) {
			case 0:
				key := keys().Draw(t, "addKey")
				m := s.GetOrAddMessage(key, "c1")
				if prev, ok := model[key]; ok {
					if prev != m {
						t.Fatalf("GetOrAddMessage(%q) returned a new entry", key)
					}
				} else {
					model[key] = m
				}
			case 1:
				oldKey := keys().Draw(t, "oldKey")
				newKey := keys().Draw(t, "newKey")
				got := s.RemapMessage(oldKey, newKey)
				prev, hadOld := model[oldKey]
				if !hadOld {
					if got != nil {
						t.Fatalf("RemapMessage(%q, %q) remapped a missing entry", oldKey, newKey)
					}
					continue
				}
				if oldKey == newKey {
					// Degenerate remap: the entry is deleted then re-added
					// under the same key.
					if got != prev {
						t.Fatalf("RemapMessage(%q, %q) lost the entry", oldKey, newKey)
					}
					continue
				}
				delete(model, oldKey)
				if existing, ok := model[newKey]; ok {
					if got != existing {
						t.Fatalf("RemapMessage(%q, %q) should keep the existing target", oldKey, newKey)
					}
				} else {
					model[newKey] = prev
					if got != prev || prev.ID != newKey {
						t.Fatalf("RemapMessage(%q, %q) did not rekey the entry", oldKey, newKey)
					}
				}
			case 2:
				key := keys().Draw(t, "removeKey")
				got := s.RemoveMessage(key)
				if got != model[key] {
					t.Fatalf("RemoveMessage(%q) mismatch", key)
				}
				delete(model, key)
			}

			// The store and the model must agree on every key.
			for key, want := range model {
				if s.Message(key) != want {
					t.Fatalf("store disagrees with model at %q", key)
				}
			}
			_, _, _, _, _, messages := s.Counts()
			if messages != len(model) {
				t.Fatalf("store holds %d messages, model %d", messages, len(model))
			}
		}
	})
}

// TestMarkSentRapid checks that MarkSent wins exactly once per queued entry
// regardless of the preceding operation sequence.
func TestMarkSentRapid(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := NewStore()
		m := s.GetOrAddMessage("pending:x", "c1")
		m.Queued = true

		if rapid.Bool().Draw(t, "remapFirst") {
			s.RemapMessage("pending:x", "m1")
		}

		key := m.ID
		attempts := rapid.IntRange(1, 5).Draw(t, "attempts")
		wins := 0
		for i := 0; i < attempts; i++ {
			if _, won := s.MarkSent(key); won {
				wins++
			}
		}
		if wins != 1 {
			t.Fatalf("MarkSent won %d times, want exactly 1", wins)
		}
		if m.Queued {
			t.Fatal("entry still queued after MarkSent")
		}
	})
}
