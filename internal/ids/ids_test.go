package ids

import "testing"

func TestNewIsUniqueAndOrdered(t *testing.T) {
	a := New()
	b := New()
	if a == b {
		t.Fatalf("consecutive ids collided: %s", a)
	}
	if !(a < b) {
		t.Fatalf("ids not monotonic: %s then %s", a, b)
	}
}

func TestValid(t *testing.T) {
	if !Valid(New()) {
		t.Fatalf("freshly minted id failed validation")
	}
	if Valid("not-an-id") {
		t.Fatalf("garbage accepted")
	}
	if Valid("") {
		t.Fatalf("empty string accepted")
	}
}
