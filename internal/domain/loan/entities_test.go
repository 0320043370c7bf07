package loan

import "testing"

func TestValidTransition(t *testing.T) {
	terminal := []Status{StatusCharged, StatusReleased, StatusRepaid, StatusDefaulted}

	for _, to := range terminal {
		if !ValidTransition(StatusActive, to) {
			t.Fatalf("active -> %s should be legal", to)
		}
	}
	for _, from := range terminal {
		for _, to := range append(terminal, StatusActive) {
			if ValidTransition(from, to) {
				t.Fatalf("%s -> %s should be illegal", from, to)
			}
		}
	}
	if ValidTransition(StatusActive, StatusActive) {
		t.Fatal("active -> active should be illegal")
	}
}

func TestTerminal(t *testing.T) {
	if StatusActive.Terminal() {
		t.Fatal("active is not terminal")
	}
	for _, s := range []Status{StatusCharged, StatusReleased, StatusRepaid, StatusDefaulted} {
		if !s.Terminal() {
			t.Fatalf("%s should be terminal", s)
		}
	}
}
