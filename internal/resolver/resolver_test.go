package resolver

import "testing"

type staticSource struct{ users []User }

func (s staticSource) CachedUserList() ([]User, error) { return s.users, nil }

func TestResolveExactEmail(t *testing.T) {
	r := New(staticSource{users: []User{{Email: "j.g@x", FullName: "Jaime Garcia"}}})
	u, err := r.Resolve("j.g@x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Email != "j.g@x" {
		t.Fatalf("unexpected match: %+v", u)
	}
}

func TestResolveSubstringFullName(t *testing.T) {
	r := New(staticSource{users: []User{{Email: "j.g@x", FullName: "Jaime Garcia"}}})
	u, err := r.Resolve("Jaime")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Email != "j.g@x" {
		t.Fatalf("unexpected match: %+v", u)
	}
}

func TestResolveAmbiguousWithinTolerance(t *testing.T) {
	r := New(staticSource{users: []User{
		{Email: "a@x", FullName: "Alice Anderson"},
		{Email: "b@x", FullName: "Alicia Banderson"},
	}})
	_, err := r.Resolve("Alic")
	if err == nil {
		t.Fatal("expected ambiguity among close substring matches")
	}
	if _, ok := err.(*AmbiguousUserError); !ok {
		t.Fatalf("expected *AmbiguousUserError, got %T: %v", err, err)
	}
}

func TestResolveNotFound(t *testing.T) {
	r := New(staticSource{users: []User{{Email: "a@x", FullName: "Alice Anderson"}}})
	_, err := r.Resolve("Zorblaxx")
	if err == nil {
		t.Fatal("expected UserNotFoundError")
	}
	if _, ok := err.(*UserNotFoundError); !ok {
		t.Fatalf("expected *UserNotFoundError, got %T", err)
	}
}
