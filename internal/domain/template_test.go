package domain

import (
	"errors"
	"testing"
)

func TestCompileTemplateResolveIdentity(t *testing.T) {
	tests := []struct {
		name     string
		template string
		withTime bool
		path     string
		want     TileIdentity
		wantErr  bool
	}{
		{
			name:     "untimed tile name",
			template: "tile_{x}_{y}",
			path:     "/data/input/tile_9_-39.nc",
			want:     TileIdentity{X: "9", Y: "-39"},
		},
		{
			name:     "timed with captured time",
			template: "LS_WATER_3577_{x}_{y}_{time}",
			withTime: true,
			path:     "LS_WATER_3577_9_-39_20180506102018.nc",
			want:     TileIdentity{X: "9", Y: "-39", Time: "20180506102018"},
		},
		{
			name:     "time matched but not captured",
			template: "LS_WATER_3577_{x}_{y}_{time}",
			path:     "LS_WATER_3577_9_-39_20180506102018.nc",
			want:     TileIdentity{X: "9", Y: "-39"},
		},
		{
			name:     "anonymous wildcard",
			template: "LS5_TM_FC_3577_{x}_{y}_{time}_v{}.nc",
			withTime: true,
			path:     "LS5_TM_FC_3577_-11_-28_20100213234627_v1508892769.nc",
			want:     TileIdentity{X: "-11", Y: "-28", Time: "20100213234627"},
		},
		{
			name:     "directory stripped before matching",
			template: "wofs_filtered_summary_{x}_{y}",
			path:     "/g/data/fk4/wofs_filtered_summary_-12_-11.nc",
			want:     TileIdentity{X: "-12", Y: "-11"},
		},
		{
			name:     "no match",
			template: "tile_{x}_{y}",
			path:     "summary_9_-39.nc",
			wantErr:  true,
		},
		{
			name:     "template without tile placeholders",
			template: "constant_name.nc",
			path:     "constant_name.nc",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tpl, err := CompileTemplate(tt.template, tt.withTime)
			if err != nil {
				t.Fatalf("CompileTemplate(%q) error: %v", tt.template, err)
			}
			got, err := tpl.ResolveIdentity(tt.path)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ResolveIdentity(%q) expected error, got %v", tt.path, got)
				}
				if !errors.Is(err, ErrTemplateMismatch) {
					t.Errorf("error should be ErrTemplateMismatch, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveIdentity(%q) error: %v", tt.path, err)
			}
			if got != tt.want {
				t.Errorf("ResolveIdentity(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestResolveIdentityDeterministic(t *testing.T) {
	tpl, err := CompileTemplate("LS8_OLI_FC_3577_{x}_{y}_{time}_v{}.nc", true)
	if err != nil {
		t.Fatalf("CompileTemplate error: %v", err)
	}

	path := "LS8_OLI_FC_3577_-15_-39_20180315000000_v123.nc"
	first, err := tpl.ResolveIdentity(path)
	if err != nil {
		t.Fatalf("ResolveIdentity error: %v", err)
	}
	for i := 0; i < 10; i++ {
		got, err := tpl.ResolveIdentity(path)
		if err != nil {
			t.Fatalf("ResolveIdentity error on run %d: %v", i, err)
		}
		if got != first {
			t.Fatalf("run %d: identity %v differs from first resolution %v", i, got, first)
		}
	}
}

func TestCompileTemplateQuotesLiterals(t *testing.T) {
	// The dot in the extension must not act as a regex wildcard.
	tpl, err := CompileTemplate("tile_{x}_{y}.nc", false)
	if err != nil {
		t.Fatalf("CompileTemplate error: %v", err)
	}
	if _, err := tpl.ResolveIdentity("tile_9_-39Xnc"); err == nil {
		t.Error("literal dot matched an arbitrary character")
	}
	if _, err := tpl.ResolveIdentity("tile_9_-39.nc"); err != nil {
		t.Errorf("literal match failed: %v", err)
	}
}

func TestCompileTemplateDuplicatePlaceholder(t *testing.T) {
	if _, err := CompileTemplate("tile_{x}_{x}", false); err == nil {
		t.Error("expected compile error for duplicate placeholder")
	}
}

func TestRenderTemplate(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		vars map[string]string
		want string
	}{
		{
			name: "tile prefix",
			raw:  "tile_{x}_{y}",
			vars: map[string]string{"x": "9", "y": "-39"},
			want: "tile_9_-39",
		},
		{
			name: "timed prefix",
			raw:  "LS_WATER_3577_{x}_{y}_{time}",
			vars: map[string]string{"x": "9", "y": "-39", "time": "20180506102018"},
			want: "LS_WATER_3577_9_-39_20180506102018",
		},
		{
			name: "anonymous wildcard renders empty",
			raw:  "name_{x}_v{}",
			vars: map[string]string{"x": "1"},
			want: "name_1_v",
		},
		{
			name: "unknown placeholder left verbatim",
			raw:  "x_{x}/{zone}",
			vars: map[string]string{"x": "1"},
			want: "x_1/{zone}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RenderTemplate(tt.raw, tt.vars); got != tt.want {
				t.Errorf("RenderTemplate(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
