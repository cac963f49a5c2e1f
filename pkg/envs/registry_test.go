package envs

import (
	"testing"
)

func TestRegistry(t *testing.T) {
	t.Run("register and make", func(t *testing.T) {
		r := NewRegistry()
		ctor := func() (*Spec, error) {
			return &Spec{ID: "Test-v0", EntryPoint: "test.env"}, nil
		}

		if err := r.Register("Test-v0", ctor); err != nil {
			t.Fatalf("Register failed: %v", err)
		}

		spec, err := r.Make("Test-v0")
		if err != nil {
			t.Fatalf("Make failed: %v", err)
		}
		if spec.ID != "Test-v0" || spec.EntryPoint != "test.env" {
			t.Errorf("Unexpected spec: %+v", spec)
		}
	})

	t.Run("duplicate registration", func(t *testing.T) {
		r := NewRegistry()
		ctor := func() (*Spec, error) { return &Spec{ID: "Dup-v0"}, nil }

		if err := r.Register("Dup-v0", ctor); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
		if err := r.Register("Dup-v0", ctor); err == nil {
			t.Error("Expected error for duplicate registration, got nil")
		}
	})

	t.Run("unknown environment", func(t *testing.T) {
		r := NewRegistry()
		if _, err := r.Make("Nope-v0"); err == nil {
			t.Error("Expected error for unknown environment, got nil")
		}
	})

	t.Run("empty id rejected", func(t *testing.T) {
		r := NewRegistry()
		if err := r.Register("", func() (*Spec, error) { return nil, nil }); err == nil {
			t.Error("Expected error for empty id, got nil")
		}
	})

	t.Run("known is sorted", func(t *testing.T) {
		r := NewRegistry()
		for _, id := range []string{"b-v0", "a-v0", "c-v0"} {
			if err := r.Register(id, func() (*Spec, error) { return &Spec{}, nil }); err != nil {
				t.Fatalf("Register %s failed: %v", id, err)
			}
		}
		known := r.Known()
		want := []string{"a-v0", "b-v0", "c-v0"}
		for i := range want {
			if known[i] != want[i] {
				t.Fatalf("Known() = %v, want %v", known, want)
			}
		}
	})
}

func TestBuiltins(t *testing.T) {
	for _, id := range []string{"CartPole-v1", "Pendulum-v1", "LunarLander-v2"} {
		spec, err := Make(id)
		if err != nil {
			t.Fatalf("Make(%q) failed: %v", id, err)
		}
		if spec.ID != id {
			t.Errorf("spec.ID = %q, want %q", spec.ID, id)
		}
		if spec.EntryPoint == "" {
			t.Errorf("%s has no entry point", id)
		}
		if spec.MaxEpisodeSteps <= 0 {
			t.Errorf("%s has no episode step limit", id)
		}
	}

	if _, err := Make("CartPole-v1"); err != nil {
		t.Errorf("second Make of a builtin failed: %v", err)
	}
}
