package framing

import (
	"fmt"
	"math"
)

// Timestamp formats secs as HH:MM:SS.hh, rounded to the nearest hundredth.
// Negative and NaN inputs format as zero.
func Timestamp(secs float64) string {
	if math.IsNaN(secs) || secs < 0 {
		secs = 0
	}
	centis := int64(math.Round(secs * 100))
	hours := centis / 360000
	minutes := (centis / 6000) % 60
	seconds := (centis / 100) % 60
	hundredths := centis % 100
	return fmt.Sprintf("%02d:%02d:%02d.%02d", hours, minutes, seconds, hundredths)
}
