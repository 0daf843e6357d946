package index

// Mode is the answering posture chosen by the confidence gate.
type Mode string

const (
	// ModeTeach means retrieved material is strong enough to answer from.
	ModeTeach Mode = "teach"
	// ModeGuide means coverage is weak; the caller should point the user
	// at what material exists instead of answering from it.
	ModeGuide Mode = "guide"
)

// GateConfig holds the confidence gate tunables.
type GateConfig struct {
	// Ratio scales the top fused score into an adaptive cutoff.
	Ratio float64
	// Floor is the absolute minimum cutoff, in fused-score units.
	Floor float64
	// MinChunks is how many results must clear the cutoff to teach.
	MinChunks int
}

// GateDecision reports the gate's verdict and the numbers behind it.
type GateDecision struct {
	Mode       Mode
	TopScore   float64
	Cutoff     float64
	Supporting int
}

// Decide applies the adaptive confidence gate to fused scores. The cutoff
// is max(top*ratio, floor); the verdict is teach only when at least
// MinChunks scores reach it. No results always guides. Pure function.
func Decide(scores []float64, cfg GateConfig) GateDecision {
	if len(scores) == 0 {
		return GateDecision{Mode: ModeGuide}
	}

	top := scores[0]
	for _, s := range scores[1:] {
		if s > top {
			top = s
		}
	}

	cutoff := top * cfg.Ratio
	if cutoff < cfg.Floor {
		cutoff = cfg.Floor
	}

	supporting := 0
	for _, s := range scores {
		if s >= cutoff {
			supporting++
		}
	}

	d := GateDecision{
		TopScore:   top,
		Cutoff:     cutoff,
		Supporting: supporting,
	}
	if supporting >= cfg.MinChunks {
		d.Mode = ModeTeach
	} else {
		d.Mode = ModeGuide
	}
	return d
}
