package math

// DivRoundUp divides `a` by `b`, rounding toward positive infinity. Both
// operands must be non-negative.
func DivRoundUp[T Integer](a, b T) T {
	if a%b == 0 {
		return a / b
	}
	return a/b + 1
}
