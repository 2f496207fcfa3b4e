package domain

import (
	"errors"
	"testing"
)

func TestStateCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from State
		to   State
		want bool
	}{
		{name: "working to upload", from: StateWorking, to: StateToUpload, want: true},
		{name: "upload to complete", from: StateToUpload, to: StateComplete, want: true},
		{name: "upload to failed", from: StateToUpload, to: StateFailed, want: true},
		{name: "working to complete", from: StateWorking, to: StateComplete, want: false},
		{name: "working to failed", from: StateWorking, to: StateFailed, want: false},
		{name: "upload back to working", from: StateToUpload, to: StateWorking, want: false},
		{name: "complete is terminal", from: StateComplete, to: StateFailed, want: false},
		{name: "failed is terminal", from: StateFailed, to: StateToUpload, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.want {
				t.Errorf("CanTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}

			err := tt.from.Transition(tt.to)
			if tt.want && err != nil {
				t.Errorf("Transition(%s -> %s) error: %v", tt.from, tt.to, err)
			}
			if !tt.want {
				if err == nil {
					t.Errorf("Transition(%s -> %s) expected error", tt.from, tt.to)
				} else {
					var terr *TransitionError
					if !errors.As(err, &terr) {
						t.Errorf("expected TransitionError, got %T", err)
					}
				}
			}
		})
	}
}

func TestStateProperties(t *testing.T) {
	for _, s := range States {
		if !s.Valid() {
			t.Errorf("state %s should be valid", s)
		}
	}
	if State("PENDING").Valid() {
		t.Error("unknown state should not be valid")
	}

	if StateWorking.Terminal() || StateToUpload.Terminal() {
		t.Error("WORKING and TO_UPLOAD are not terminal")
	}
	if !StateComplete.Terminal() || !StateFailed.Terminal() {
		t.Error("COMPLETE and FAILED are terminal")
	}
}

func TestDatasetFilenames(t *testing.T) {
	prefix := "LS_WATER_3577_9_-39_20180506102018"

	if got := BandFilename(prefix, "water"); got != prefix+"_water.tif" {
		t.Errorf("BandFilename = %q", got)
	}
	if got := MetadataFilename(prefix); got != prefix+".yaml" {
		t.Errorf("MetadataFilename = %q", got)
	}
}
