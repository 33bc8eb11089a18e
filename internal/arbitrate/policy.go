package arbitrate

// Policy centralizes arbitration thresholds.
type Policy struct {
	// HighTextThreshold is the OCR confidence at which packaging text is
	// treated as ground truth.
	HighTextThreshold float64
	// MinConfidence is the floor below which no candidate is chosen.
	MinConfidence float64
	// TieBreakMargin is the lead over the runner-up required to call a
	// resolution clean instead of ambiguous.
	TieBreakMargin float64
}

// DefaultPolicy returns the documented defaults: 0.75 / 0.40 / 0.15.
func DefaultPolicy() Policy {
	return Policy{
		HighTextThreshold: 0.75,
		MinConfidence:     0.40,
		TieBreakMargin:    0.15,
	}
}

func (p Policy) normalized() Policy {
	d := DefaultPolicy()
	if p.HighTextThreshold <= 0 || p.HighTextThreshold >= 1 {
		p.HighTextThreshold = d.HighTextThreshold
	}
	if p.MinConfidence <= 0 || p.MinConfidence >= 1 {
		p.MinConfidence = d.MinConfidence
	}
	if p.TieBreakMargin <= 0 || p.TieBreakMargin >= 1 {
		p.TieBreakMargin = d.TieBreakMargin
	}
	if p.MinConfidence >= p.HighTextThreshold {
		p.MinConfidence = d.MinConfidence
		p.HighTextThreshold = d.HighTextThreshold
	}
	return p
}
