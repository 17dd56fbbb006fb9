// SPDX-License-Identifier: MIT

package flight

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewParty(t *testing.T) {
	tests := []struct {
		name                      string
		adults, children, infants int
		wantErr                   bool
	}{
		{"single adult", 1, 0, 0, false},
		{"family", 2, 2, 1, false},
		{"no adult", 0, 1, 0, true},
		{"infant without adult", 0, 0, 1, true},
		{"more infants than adults", 1, 0, 2, true},
		{"nine travelers", 4, 1, 4, false},
		{"ten travelers", 5, 1, 4, true},
		{"negative child", 1, -1, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParty(tt.adults, tt.children, tt.infants)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidRequest) {
				t.Fatalf("expected ErrInvalidRequest, got %v", err)
			}
		})
	}
}

func TestParty_Travelers(t *testing.T) {
	p, err := NewParty(2, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	want := []Traveler{
		{ID: "1", TravelerType: TravelerAdult},
		{ID: "2", TravelerType: TravelerAdult},
		{ID: "3", TravelerType: TravelerChild},
		{ID: "4", TravelerType: TravelerHeldInfant, AssociatedAdultID: "1"},
		{ID: "5", TravelerType: TravelerHeldInfant, AssociatedAdultID: "2"},
	}
	if diff := cmp.Diff(want, p.Travelers()); diff != "" {
		t.Errorf("travelers mismatch (-want +got):\n%s", diff)
	}
}
