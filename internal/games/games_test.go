package games

import (
	"errors"
	"testing"

	"wdf-server/internal/platform/config"
)

func testRegistry() *Registry {
	return NewRegistry([]config.GameSettings{
		{Version: 2016, Name: "JD16", IsAvailable: true, WDF: true},
		{Version: 2015, Name: "JD15", IsAvailable: true, WDF: true},
		{Version: 2014, Name: "JD14", IsAvailable: false, WDF: true},
		{Version: 2018, Name: "JD18", IsAvailable: true, WDF: false},
	})
}

func TestRegistry_IsAvailable(t *testing.T) {
	r := testRegistry()
	cases := map[int]bool{2015: true, 2016: true, 2014: false, 2018: false, 1999: false}
	for v, want := range cases {
		if got := r.IsAvailable(v); got != want {
			t.Errorf("IsAvailable(%d) = %v, want %v", v, got, want)
		}
	}
}

func TestRegistry_Require(t *testing.T) {
	r := testRegistry()
	if err := r.Require(2015); err != nil {
		t.Fatalf("Require(2015): %v", err)
	}
	err := r.Require(2014)
	if !errors.Is(err, ErrGameEditionUnavailable) {
		t.Fatalf("expected ErrGameEditionUnavailable, got %v", err)
	}
	if err.Error() != "2014: game edition is not available" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestRegistry_Available_sorted(t *testing.T) {
	got := testRegistry().Available()
	if len(got) != 2 || got[0].Version != 2015 || got[1].Version != 2016 {
		t.Errorf("Available() = %+v", got)
	}
	if e, ok := testRegistry().Get(2018); !ok || e.Name != "JD18" {
		t.Errorf("Get(2018) = %+v, %v", e, ok)
	}
}
