package calculator

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

var (
	// ErrOverflow is returned when an intermediate product or sum exceeds 256 bits.
	ErrOverflow = errors.New("fixed-point overflow")
	// ErrUnderflow is returned when a subtraction would go below zero.
	ErrUnderflow = errors.New("fixed-point underflow")
)

// PercentageFactor is 100% in basis points.
const PercentageFactor = 10_000

var (
	// Ray is the fixed-point unit: 1e27 represents 1.0.
	Ray = uint256.MustFromDecimal("1000000000000000000000000000")
	// HalfRay is used for half-up rounding of ray products.
	HalfRay = uint256.MustFromDecimal("500000000000000000000000000")
	// WadRayRatio converts 1e18 (wad) values to ray.
	WadRayRatio = uint256.NewInt(1_000_000_000)

	percentageFactor = uint256.NewInt(PercentageFactor)
	halfPercentage   = uint256.NewInt(PercentageFactor / 2)
)

// Mul returns x*y or ErrOverflow.
func Mul(x, y *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).MulOverflow(x, y)
	if overflow {
		return nil, fmt.Errorf("mul %s * %s: %w", x.Dec(), y.Dec(), ErrOverflow)
	}
	return z, nil
}

// Add returns x+y or ErrOverflow.
func Add(x, y *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).AddOverflow(x, y)
	if overflow {
		return nil, fmt.Errorf("add %s + %s: %w", x.Dec(), y.Dec(), ErrOverflow)
	}
	return z, nil
}

// Sub returns x-y or ErrUnderflow.
func Sub(x, y *uint256.Int) (*uint256.Int, error) {
	z, underflow := new(uint256.Int).SubOverflow(x, y)
	if underflow {
		return nil, fmt.Errorf("sub %s - %s: %w", x.Dec(), y.Dec(), ErrUnderflow)
	}
	return z, nil
}

// MulDivFloor computes x*y/d with a checked multiply and a flooring divide.
// A zero divisor yields zero.
func MulDivFloor(x, y, d *uint256.Int) (*uint256.Int, error) {
	product, err := Mul(x, y)
	if err != nil {
		return nil, err
	}
	return product.Div(product, d), nil
}

// PercentOf applies a basis-point multiplier with floor division.
func PercentOf(value *uint256.Int, bps uint64) (*uint256.Int, error) {
	return MulDivFloor(value, uint256.NewInt(bps), percentageFactor)
}

// PercentMul applies a basis-point multiplier with half-up rounding.
func PercentMul(value *uint256.Int, bps uint64) (*uint256.Int, error) {
	product, err := Mul(value, uint256.NewInt(bps))
	if err != nil {
		return nil, err
	}
	if product, err = Add(product, halfPercentage); err != nil {
		return nil, err
	}
	return product.Div(product, percentageFactor), nil
}

// RayMul multiplies two ray values rounding half up.
func RayMul(a, b *uint256.Int) (*uint256.Int, error) {
	product, err := Mul(a, b)
	if err != nil {
		return nil, err
	}
	if product, err = Add(product, HalfRay); err != nil {
		return nil, err
	}
	return product.Div(product, Ray), nil
}

// RayDiv divides two ray values rounding half up. Division by zero yields zero.
func RayDiv(a, b *uint256.Int) (*uint256.Int, error) {
	if b.IsZero() {
		return new(uint256.Int), nil
	}
	numerator, err := Mul(a, Ray)
	if err != nil {
		return nil, err
	}
	half := new(uint256.Int).Rsh(b, 1)
	if numerator, err = Add(numerator, half); err != nil {
		return nil, err
	}
	return numerator.Div(numerator, b), nil
}

// WadToRay scales an 18-decimal value to 27 decimals.
func WadToRay(a *uint256.Int) (*uint256.Int, error) {
	return Mul(a, WadRayRatio)
}

// ParseRay parses a base-10 integer string into a ray value. Underscores are
// accepted as digit separators.
func ParseRay(s string) (*uint256.Int, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(s), "_", "")
	if cleaned == "" {
		return nil, errors.New("empty fixed-point value")
	}
	v, err := uint256.FromDecimal(cleaned)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", s, err)
	}
	return v, nil
}

// FromBasisPoints returns bps/10_000 expressed in ray.
func FromBasisPoints(bps uint64) *uint256.Int {
	v := new(uint256.Int).Mul(Ray, uint256.NewInt(bps))
	return v.Div(v, percentageFactor)
}

// ToFloat converts a ray value to a float for display and metrics only.
func ToFloat(v *uint256.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Rat).SetFrac(v.ToBig(), Ray.ToBig()).Float64()
	return f
}

// EncodeUint256 returns the 32-byte big-endian encoding of v.
func EncodeUint256(v *uint256.Int) []byte {
	b := v.Bytes32()
	return b[:]
}

// DecodeUint256 reverses EncodeUint256. The input must be exactly 32 bytes.
func DecodeUint256(b []byte) (*uint256.Int, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("expected 32 bytes, got %d", len(b))
	}
	return new(uint256.Int).SetBytes32(b), nil
}
