package clock

import "testing"

func TestAdvanceIsMonotonic(t *testing.T) {
	c := New()
	if c.Now() != 0 {
		t.Fatalf("new clock should start at 0, got %d", c.Now())
	}
	for i := int64(1); i <= 5; i++ {
		if got := c.Advance(); got != i {
			t.Fatalf("Advance() = %d, want %d", got, i)
		}
	}
	if c.Now() != 5 {
		t.Fatalf("Now() = %d, want 5", c.Now())
	}
}
