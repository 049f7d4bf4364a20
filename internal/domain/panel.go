package domain

import "time"

// PanelEnvelopeVersion is the envelope schema tag written into every
// panel file (spec §6).
const PanelEnvelopeVersion = "panel-envelope-v1"

// PanelMeta is the meta block of a panel envelope.
type PanelMeta struct {
	Source string `json:"source"`
	Schema string `json:"schema"`
	Hash   string `json:"hash"`
}

// Panel is a named, hashable snapshot of a UI section (spec §3, §6).
type Panel struct {
	Name        string      `json:"panel"`
	Version     string      `json:"version"`
	GeneratedAt time.Time   `json:"generated_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	Meta        PanelMeta   `json:"meta"`
	Data        interface{} `json:"data"`
}
