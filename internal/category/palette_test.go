package category

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultPalette(t *testing.T) {
	p := DefaultPalette()
	if p.DefaultKey() != "other" {
		t.Fatalf("DefaultKey = %q, want other", p.DefaultKey())
	}
	if got := p.ColorFor([]string{"Other", "Jazz"}); got != "#BA68C8" {
		t.Fatalf("ColorFor(jazz) = %q", got)
	}
	if got := p.ColorFor([]string{"Unheard Of"}); got != p.Color("other") {
		t.Fatalf("unknown category got %q, want default %q", got, p.Color("other"))
	}
	if got := p.ColorFor(nil); got != "#585A5B" {
		t.Fatalf("ColorFor(nil) = %q", got)
	}
}

func TestParsePalette(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "valid with normalised keys",
			yaml: "default: Misc\ncolors:\n  \" Jazz \": \"#111\"\n  misc: \"#222\"\n",
		},
		{
			name: "default defaults to sentinel",
			yaml: "colors:\n  other: \"#222\"\n",
		},
		{
			name:    "missing default colour",
			yaml:    "default: none\ncolors:\n  jazz: \"#111\"\n",
			wantErr: "default category",
		},
		{
			name:    "empty colour",
			yaml:    "colors:\n  jazz: \"\"\n  other: \"#222\"\n",
			wantErr: "has no colour",
		},
		{
			name:    "conflicting duplicate",
			yaml:    "colors:\n  Jazz: \"#111\"\n  jazz: \"#333\"\n  other: \"#222\"\n",
			wantErr: "defined twice",
		},
		{
			name:    "bad yaml",
			yaml:    "colors: [",
			wantErr: "decode palette",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParsePalette([]byte(tt.yaml))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if p.Color("nope") == "" {
				t.Fatal("default colour should be set")
			}
		})
	}
}

func TestParsePaletteNormalisesKeys(t *testing.T) {
	p, err := ParsePalette([]byte("default: Misc\ncolors:\n  \" Jazz \": \"#111\"\n  misc: \"#222\"\n"))
	if err != nil {
		t.Fatal(err)
	}
	if got := p.Color("jazz"); got != "#111" {
		t.Fatalf("Color(jazz) = %q", got)
	}
	if got := p.ColorFor([]string{"Blues"}); got != "#222" {
		t.Fatalf("fallback = %q, want #222", got)
	}
	if keys := p.Keys(); len(keys) != 2 || keys[0] != "jazz" || keys[1] != "misc" {
		t.Fatalf("Keys = %v", keys)
	}
}

func TestLoadPalette(t *testing.T) {
	p, err := LoadPalette("")
	if err != nil || p.DefaultKey() != "other" {
		t.Fatalf("LoadPalette(\"\") = %v, %v", p, err)
	}

	path := filepath.Join(t.TempDir(), "palette.yaml")
	if err := os.WriteFile(path, []byte("default: x\ncolors:\n  x: \"#000\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err = LoadPalette(path)
	if err != nil {
		t.Fatal(err)
	}
	if p.Color("anything") != "#000" {
		t.Fatalf("Color = %q", p.Color("anything"))
	}

	if _, err := LoadPalette(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
