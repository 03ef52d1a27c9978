package util

import (
	"fmt"
	"math"
	"math/bits"
	"time"
)

// FormatSize renders a byte count with binary units, dropping decimals for
// exact multiples.
func FormatSize(size uint64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}

	units := []string{"B", "KB", "MB", "GB", "TB", "PB", "EB"}
	exp := int(math.Log(float64(size)) / math.Log(unit))
	if exp >= len(units) {
		exp = len(units) - 1
	}

	// Integer arithmetic keeps the printed digits exact
	div := uint64(1) << (10 * exp)
	// float rounding of the log can be off by one near unit boundaries
	if size < div {
		exp--
		div >>= 10
	} else if exp < len(units)-1 && size/div >= unit {
		exp++
		div <<= 10
	}
	value := size / div
	remainder := size % div
	if remainder == 0 {
		return fmt.Sprintf("%d %s", value, units[exp])
	}

	// three decimal places; the product can exceed 64 bits
	hi, lo := bits.Mul64(remainder, 1000)
	decimal, _ := bits.Div64(hi, lo, div)
	switch {
	case decimal%10 != 0:
		return fmt.Sprintf("%d.%03d %s", value, decimal, units[exp])
	case decimal%100 != 0:
		return fmt.Sprintf("%d.%02d %s", value, decimal/10, units[exp])
	default:
		return fmt.Sprintf("%d.%d %s", value, decimal/100, units[exp])
	}
}

// FormatBitRate renders bits per second with decimal (SI) prefixes, the way
// link speeds are quoted.
func FormatBitRate(bps float64) string {
	if bps <= 0 || math.IsNaN(bps) || math.IsInf(bps, 0) {
		return "0 bit/s"
	}
	units := []string{"bit/s", "Kbit/s", "Mbit/s", "Gbit/s", "Tbit/s"}
	exp := 0
	for bps >= 1000 && exp < len(units)-1 {
		bps /= 1000
		exp++
	}
	if exp == 0 {
		return fmt.Sprintf("%.0f %s", bps, units[exp])
	}
	return fmt.Sprintf("%.2f %s", bps, units[exp])
}

// FormatPercent renders a percentage with one decimal.
func FormatPercent(p float64) string {
	return fmt.Sprintf("%.1f%%", p)
}

// FormatDuration rounds d for display: milliseconds below ten seconds,
// tenths of a second above.
func FormatDuration(d time.Duration) string {
	if d < 10*time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}
