// Package pitch converts between the continuous frequency model and MIDI
// note plus 14-bit pitch bend. The live MIDI-out path and the file exporter
// both go through FromFrequency so an exported file replays what was heard.
package pitch

import "math"

const (
	// BendRange is the pitch bend range in semitones, announced to receivers
	// through RPN 0.
	BendRange  = 2.0
	BendCenter = 8192
	MaxBend    = 16383

	// SampleReference is the pitch the piano samples were recorded at (A2).
	SampleReference = 220.0
)

// FromFrequency returns the closest MIDI note and the bend that corrects it
// to f. Non-positive frequencies map to note 0 with no bend.
func FromFrequency(f float64) (note uint8, bend uint16) {
	if !(f > 0) || math.IsInf(f, 0) {
		return 0, BendCenter
	}
	exact := 69 + 12*math.Log2(f/440)
	closest := math.Round(math.Max(0, math.Min(127, exact)))
	deviation := exact - closest
	b := math.Round(BendCenter + deviation/BendRange*8191)
	b = math.Max(0, math.Min(MaxBend, b))
	return uint8(closest), uint16(b)
}

// ToFrequency reverses FromFrequency.
func ToFrequency(note uint8, bend uint16) float64 {
	semis := float64(note) - 69 + (float64(bend)-BendCenter)/8191*BendRange
	return 440 * math.Exp2(semis/12)
}

// Split returns the 7-bit LSB and MSB of a 14-bit bend value.
func Split(bend uint16) (lsb, msb uint8) {
	return uint8(bend & 0x7F), uint8((bend >> 7) & 0x7F)
}

func Join(lsb, msb uint8) uint16 {
	return uint16(msb&0x7F)<<7 | uint16(lsb&0x7F)
}

// Relative is the signed bend gomidi expects, in [-8192, 8191].
func Relative(bend uint16) int16 {
	return int16(int(bend) - BendCenter)
}

// FromBendInput maps an incoming 14-bit bend to a semitone offset.
func FromBendInput(v uint16) float64 {
	return (float64(v) - BendCenter) / BendCenter * BendRange
}

// Factor is the frequency multiplier of a semitone offset.
func Factor(semitones float64) float64 {
	return math.Exp2(semitones / 12)
}

func Retune(base, semitones float64) float64 {
	return base * Factor(semitones)
}

// PlaybackRate is the rate that makes a piano sample sound at f.
func PlaybackRate(f float64) float64 {
	return f / SampleReference
}

// Cents is the distance from a to b in cents.
func Cents(a, b float64) float64 {
	return 1200 * math.Log2(b/a)
}
