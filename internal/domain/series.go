package domain

// Diff returns the first difference of a series. Position 0 is undefined, as
// is any position where either operand is absent.
func Diff(s TimeSeries) TimeSeries {
	out := TimeSeries{Name: s.Name, Points: make([]Point, len(s.Points))}
	for i, p := range s.Points {
		out.Points[i].Date = p.Date
		if i == 0 {
			continue
		}
		prev := s.Points[i-1].Value
		if p.Value.OK && prev.OK {
			out.Points[i].Value = Some(p.Value.V - prev.V)
		}
	}
	return out
}

// RollingMean returns the mean of each full window of size window ending at
// each position. The first window-1 positions, and any window containing an
// absent value, are undefined. There is no partial-window averaging at the
// start. A window below 1 is treated as 1.
func RollingMean(s TimeSeries, window int) TimeSeries {
	if window < 1 {
		window = 1
	}
	out := TimeSeries{Name: s.Name, Points: make([]Point, len(s.Points))}
	for i, p := range s.Points {
		out.Points[i].Date = p.Date
		if i < window-1 {
			continue
		}
		var (
			sum      float64
			complete = true
		)
		for j := i - window + 1; j <= i; j++ {
			v := s.Points[j].Value
			if !v.OK {
				complete = false
				break
			}
			sum += v.V
		}
		if complete {
			out.Points[i].Value = Some(sum / float64(window))
		}
	}
	return out
}

// PercentChange returns the relative change between consecutive values in
// percent. It is the transmission rate when applied to cumulative confirmed
// cases. Position 0 and positions with an absent operand are undefined.
//
// A zero previous value yields 0, matching Rate, where a plain percent-change
// would be +Inf (or NaN for 0 to 0). The first day a country goes from no
// cases to some cases therefore reports a transmission rate of 0, and the
// rolling mean over that window stays finite.
func PercentChange(s TimeSeries) TimeSeries {
	out := TimeSeries{Name: s.Name, Points: make([]Point, len(s.Points))}
	for i, p := range s.Points {
		out.Points[i].Date = p.Date
		if i == 0 {
			continue
		}
		prev := s.Points[i-1].Value
		if !p.Value.OK || !prev.OK {
			continue
		}
		if prev.V == 0 {
			out.Points[i].Value = Some(0)
			continue
		}
		out.Points[i].Value = Some(finiteOrZero((p.Value.V - prev.V) / prev.V * 100))
	}
	return out
}

// Rename returns a copy of the series under a new name.
func (s TimeSeries) Rename(name string) TimeSeries {
	s.Name = name
	return s
}
