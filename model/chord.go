package model

// ChordNote points at a keyboard key, optionally transposed by octaves.
type ChordNote struct {
	KeyIndex     int `json:"keyIndex"`
	OctaveOffset int `json:"octaveMod"`
}

// ChordDefinition is an ordered list of notes. A nil entry is an unassigned
// slot and is skipped when the chord plays.
type ChordDefinition struct {
	Name  string       `json:"name"`
	Notes []*ChordNote `json:"notes"`
}
