package math

import "testing"

func TestDivRoundUp(t *testing.T) {
	for _, testCase := range []struct {
		a, b, wanted int64
	}{
		{0, 64, 0},
		{1, 64, 1},
		{64, 64, 1},
		{65, 64, 2},
		{1000, 64, 16},
	} {
		if found := DivRoundUp(testCase.a, testCase.b); found != testCase.wanted {
			t.Fatalf(
				"DivRoundUp(%d, %d): wanted `%d`; found `%d`",
				testCase.a,
				testCase.b,
				testCase.wanted,
				found,
			)
		}
	}
}

func TestMinMax(t *testing.T) {
	if found := Min(3, -2); found != -2 {
		t.Fatalf("Min(3, -2): wanted `-2`; found `%d`", found)
	}
	if found := Max(uint8(3), uint8(9)); found != 9 {
		t.Fatalf("Max(3, 9): wanted `9`; found `%d`", found)
	}
}
