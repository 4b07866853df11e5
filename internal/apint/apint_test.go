package apint

import "testing"

// TestAddMulWraparound: Int(8)=123 + Int(8)=42 = 165, then *21 wraps
// mod 256 to 129.
func TestAddMulWraparound(t *testing.T) {
	a := FromUint64(8, 123)
	b := FromUint64(8, 42)

	sum, err := Add(a, b)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	got, err := sum.ToUint64()
	if err != nil {
		t.Fatalf("ToUint64: %v", err)
	}
	if got != 165 {
		t.Fatalf("165 expected, got %d", got)
	}

	c := FromUint64(8, 21)
	prod, err := MulUnsigned(sum, c)
	if err != nil {
		t.Fatalf("MulUnsigned: %v", err)
	}
	got, err = prod.ToUint64()
	if err != nil {
		t.Fatalf("ToUint64: %v", err)
	}
	if got != (165*21)%256 {
		t.Fatalf("expected %d, got %d", (165*21)%256, got)
	}
}

func TestWidePrecisionAdd(t *testing.T) {
	a := FromUint64(128, 1)
	one := FromUint64(128, 1)
	for i := 0; i < 64; i++ {
		var err error
		a, err = Add(a, one)
		if err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	got, err := a.ToUint64()
	if err != nil {
		t.Fatalf("ToUint64: %v", err)
	}
	if got != 65 {
		t.Fatalf("expected 65, got %d", got)
	}
}

func TestShiftSaturation(t *testing.T) {
	a := FromUint64(8, 0xFF)
	shifted := Lsl(a, FromUint64(8, 8))
	if !shifted.IsZero() {
		t.Fatalf("shift by >= width must yield zero")
	}

	neg := FromUint64(8, 0x80) // -128 signed
	arith := Asr(neg, FromUint64(8, 9))
	v, _ := arith.ToInt64()
	if v != -1 {
		t.Fatalf("asr saturating shift of a negative value must sign-fill to -1, got %d", v)
	}
}

func TestDivZero(t *testing.T) {
	a := FromUint64(8, 10)
	z := New(8)
	if _, err := DivUnsigned(a, z); err != ErrorDivZero {
		t.Fatalf("expected ErrorDivZero, got %v", err)
	}
}

func TestSignedDivision(t *testing.T) {
	a := FromInt64(8, -7)
	b := FromInt64(8, 2)
	q, err := DivSigned(a, b)
	if err != nil {
		t.Fatalf("DivSigned: %v", err)
	}
	got, _ := q.ToInt64()
	if got != -3 {
		t.Fatalf("expected truncating quotient -3, got %d", got)
	}
}

func TestWidthMismatch(t *testing.T) {
	a := FromUint64(8, 1)
	b := FromUint64(16, 1)
	if _, err := Add(a, b); err != ErrorWidthMismatch {
		t.Fatalf("expected ErrorWidthMismatch, got %v", err)
	}
}

func TestMinimumSignedBits(t *testing.T) {
	pos := FromUint64(8, 5) // 0b00000101
	if got := pos.MinimumSignedBits(); got != 4 {
		t.Fatalf("expected 4, got %d", got)
	}
	neg := FromInt64(8, -1) // all ones
	if got := neg.MinimumSignedBits(); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
}

func TestTruncExtRoundTrip(t *testing.T) {
	a := FromInt64(16, -5)
	wide, err := SExt(a, 32)
	if err != nil {
		t.Fatalf("SExt: %v", err)
	}
	v, _ := wide.ToInt64()
	if v != -5 {
		t.Fatalf("expected -5 after sign extension, got %d", v)
	}

	back, err := Trunc(wide, 16)
	if err != nil {
		t.Fatalf("Trunc: %v", err)
	}
	eq, _ := Equal(back, a)
	if !eq {
		t.Fatalf("trunc(sext(a)) should equal a")
	}
}

func TestOverflowOnNarrowConversion(t *testing.T) {
	a := FromUint64(128, 1)
	for i := 0; i < 100; i++ {
		a = Lsl(a, FromUint64(128, 1))
	}
	if _, err := a.ToInt64(); err != ErrorOverflow {
		t.Fatalf("expected ErrorOverflow, got %v", err)
	}
}
