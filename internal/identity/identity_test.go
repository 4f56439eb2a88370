package identity

import "testing"

func TestSelectPrefersExplicitKind(t *testing.T) {
	r := New(&Bundle{Kind: KindUser}, &Bundle{Kind: KindBot}, nil)

	b, err := r.Select("send", KindUser)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Kind != KindUser {
		t.Fatalf("want USER bundle, got %s", b.Kind)
	}
}

func TestSelectFallsBackToFamilyDefault(t *testing.T) {
	r := New(&Bundle{Kind: KindUser}, &Bundle{Kind: KindBot}, nil)

	b, err := r.Select("send", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Kind != KindBot {
		t.Fatalf("want BOT bundle for send family, got %s", b.Kind)
	}
}

func TestSelectFallsBackToUser(t *testing.T) {
	r := New(&Bundle{Kind: KindUser}, nil, nil)

	b, err := r.Select("search", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Kind != KindUser {
		t.Fatalf("want USER bundle, got %s", b.Kind)
	}
}

func TestCheckCapabilityDenied(t *testing.T) {
	r := New(&Bundle{Kind: KindUser}, nil, nil)

	err := r.CheckCapability("user_management", KindUser)
	if err == nil {
		t.Fatal("expected CapabilityDenied, got nil")
	}
	var denied *CapabilityDenied
	if !asCapabilityDenied(err, &denied) {
		t.Fatalf("expected *CapabilityDenied, got %T", err)
	}
}

func asCapabilityDenied(err error, target **CapabilityDenied) bool {
	d, ok := err.(*CapabilityDenied)
	if ok {
		*target = d
	}
	return ok
}

func TestSwitchLeavesCurrentOnFailedValidation(t *testing.T) {
	r := New(&Bundle{Kind: KindUser}, nil, &Bundle{Kind: KindAdmin})
	before := r.Current()

	err := r.Switch(KindAdmin, failingValidator{})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if r.Current() != before {
		t.Fatalf("current kind changed after failed switch: got %s, want %s", r.Current(), before)
	}
}

type failingValidator struct{}

func (failingValidator) Validate(*Bundle) error {
	return errTest
}

var errTest = &CapabilityDenied{Kind: KindAdmin, Family: "test"}
