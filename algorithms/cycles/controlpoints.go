package cycles

import "github.com/RyanBlaney/sonido-emd/algorithms/envelope"

// Missing marks a control point that could not be found.
const Missing = -1

// Points holds the control points of one cycle as sample offsets from the
// start of the cycle.
type Points struct {
	Start    int `json:"start"`
	Peak     int `json:"peak"`
	DescZero int `json:"desc_zero"`
	Trough   int `json:"trough"`
	End      int `json:"end"`
}

// Complete reports whether every control point was found and they occur in
// cycle order.
func (p Points) Complete() bool {
	if p.Peak == Missing || p.DescZero == Missing || p.Trough == Missing || p.End == Missing {
		return false
	}
	return p.Start < p.Peak && p.Peak <= p.DescZero && p.DescZero < p.Trough && p.Trough < p.End
}

// ControlPoints finds the control points of every cycle in labels, returned
// in label order starting with cycle 1. A peak or trough is found only when
// the cycle holds exactly one strict maximum or minimum. The descending zero
// is the last sample before the IMF turns from positive to not positive,
// found only when the cycle crosses exactly once. A label with no samples
// gets every point Missing.
func ControlPoints(imf []float64, labels []int) []Points {
	all := spans(labels)
	out := make([]Points, len(all))
	for i, s := range all {
		if s.hi <= s.lo || s.hi > len(imf) {
			out[i] = Points{Start: Missing, Peak: Missing, DescZero: Missing, Trough: Missing, End: Missing}
			continue
		}
		out[i] = cyclePoints(imf[s.lo:s.hi])
	}
	return out
}

func cyclePoints(seg []float64) Points {
	p := Points{Start: 0, Peak: Missing, DescZero: Missing, Trough: Missing, End: len(seg) - 1}

	maxLocs, minLocs := envelope.FindExtrema(seg)
	if len(maxLocs) == 1 {
		p.Peak = maxLocs[0]
	}
	if len(minLocs) == 1 {
		p.Trough = minLocs[0]
	}

	crossings := 0
	for i := 0; i+1 < len(seg); i++ {
		if seg[i] > 0 && seg[i+1] <= 0 {
			p.DescZero = i
			crossings++
		}
	}
	if crossings != 1 {
		p.DescZero = Missing
	}
	return p
}
