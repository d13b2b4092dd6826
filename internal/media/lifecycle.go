package media

import (
	"fmt"

	"reel/internal/services"
)

// Ready reports whether every requested profile has produced an output.
// Unsaved entities are never ready. Two outputs for the same profile count
// once, so a duplicate cannot stand in for a missing profile.
func (m *Media) Ready() bool {
	if !m.Persisted() || len(m.Outputs) != len(m.ProfileIDs) {
		return false
	}
	seen := make(map[int64]struct{}, len(m.Outputs))
	for _, out := range m.Outputs {
		if out.ProfileID == 0 {
			continue
		}
		if _, dup := seen[out.ProfileID]; dup {
			return false
		}
		seen[out.ProfileID] = struct{}{}
	}
	return true
}

// Encodable reports whether the entity still needs encoding.
func (m *Media) Encodable() bool {
	return !m.Encoded
}

// PrepareSave applies the pre-persist transition: a new entity that is not
// ready starts out encoding.
func (m *Media) PrepareSave() {
	if !m.Persisted() && !m.Ready() {
		m.Encoding = true
	}
}

// ReplaceInput swaps the input file of an existing entity and marks it as
// encoding again. It reports whether the name changed.
func (m *Media) ReplaceInput(name string) bool {
	if name == m.InputName {
		return false
	}
	m.InputName = name
	if m.Persisted() {
		m.Encoding = true
	}
	return true
}

// Complete flips the entity to its terminal state. It fails unless Ready.
func (m *Media) Complete() error {
	if !m.Ready() {
		return services.Wrap(services.ErrValidation, "media", "complete",
			fmt.Sprintf("media %d has %d of %d outputs", m.ID, len(m.Outputs), len(m.ProfileIDs)), nil)
	}
	m.Encoded = true
	m.Uploaded = true
	m.Encoding = false
	return nil
}
