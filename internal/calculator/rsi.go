package calculator

import "errors"

// Period is the Wilder smoothing length used for every horizon.
const Period = 14

// ErrInsufficientData is returned when fewer than Period+1 observations are supplied.
var ErrInsufficientData = errors.New("insufficient data for RSI")

// CalculateRSI computes the Wilder-smoothed RSI of values ordered oldest-first.
// The first Period changes seed the averages; every later change is folded in
// with avg = (avg*(Period-1) + x) / Period. A zero average loss yields 100.
func CalculateRSI(values []float64) (float64, error) {
	if len(values) < Period+1 {
		return 0, ErrInsufficientData
	}

	var avgGain, avgLoss float64
	for i := 1; i <= Period; i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= Period
	avgLoss /= Period

	for i := Period + 1; i < len(values); i++ {
		change := values[i] - values[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*(Period-1) + gain) / Period
		avgLoss = (avgLoss*(Period-1) + loss) / Period
	}

	if avgLoss == 0 {
		return 100.0, nil
	}
	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs), nil
}
