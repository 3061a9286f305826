// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

package series

import "math"

// RoundingKind selects how TimeSeries.Add rounds an incoming value before it
// reaches the chunk layer.
type RoundingKind uint8

const (
	RoundNone RoundingKind = iota
	RoundSignificantDigits
	RoundDecimalDigits
)

// Rounding bundles a kind with its digit count. The zero value is RoundNone,
// a no-op.
type Rounding struct {
	Kind RoundingKind
	N    int
}

// Apply rounds v per the configured policy. NaN and Inf pass through
// unchanged; the chunk layer is responsible for NaN canonicalization.
func (r Rounding) Apply(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	switch r.Kind {
	case RoundDecimalDigits:
		return roundDecimalDigits(v, r.N)
	case RoundSignificantDigits:
		return roundSignificantDigits(v, r.N)
	default:
		return v
	}
}

func roundDecimalDigits(v float64, n int) float64 {
	if n < 0 {
		n = 0
	}
	pow := math.Pow(10, float64(n))
	return math.Round(v*pow) / pow
}

func roundSignificantDigits(v float64, n int) float64 {
	if v == 0 || n <= 0 {
		return v
	}
	mag := math.Ceil(math.Log10(math.Abs(v)))
	pow := math.Pow(10, float64(n)-mag)
	return math.Round(v*pow) / pow
}
