package model

type StartVoiceRequestBody struct {
	Frequency     float64        `json:"frequency"`
	BaseFrequency float64        `json:"baseFrequency"`
	Source        SourceCategory `json:"source"`
	Duration      *float64       `json:"duration"`
	SoundType     string         `json:"soundType"`
	KeyIndex      *int           `json:"keyIndex"`
}

type StopVoiceRequestBody struct {
	Release *float64 `json:"release"`
}

type PitchRequestBody struct {
	Semitones float64 `json:"semitones"`
}

type TempoRequestBody struct {
	BPM int `json:"bpm"`
}

type MidiRequestBody struct {
	Data []int `json:"data"`
}

type CellRequestBody struct {
	Row  int  `json:"row"`
	Step int  `json:"step"`
	On   bool `json:"on"`
}

type StatusResponse struct {
	Live       bool     `json:"live"`
	Voices     []string `json:"voices"`
	Tempo      int      `json:"tempo"`
	Playing    bool     `json:"playing"`
	PitchShift float64  `json:"pitchShift"`
}

type ErrorResponse struct {
	Error string `json:"detail"`
}
