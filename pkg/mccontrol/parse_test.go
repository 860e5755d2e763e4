package mccontrol

import (
	"reflect"
	"testing"
)

func TestParsePlayerList(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   PlayerList
	}{
		{
			name:   "vanilla",
			output: "There are 2 of a max of 20 players online: Steve, Alex",
			want:   PlayerList{Online: 2, Max: 20, Names: []string{"Steve", "Alex"}},
		},
		{
			name:   "nobody online",
			output: "There are 0 of a max of 20 players online: ",
			want:   PlayerList{Online: 0, Max: 20, Names: []string{}},
		},
		{
			name:   "legacy slash",
			output: "There are 1/10 players online:\nNotch",
			want:   PlayerList{Online: 1, Max: 10, Names: []string{"Notch"}},
		},
		{
			name:   "paper groups",
			output: "§6There are §c3§6 out of maximum §c50§6 players online.\n§6default§r: Steve, Alex\n§6admin§r: Notch",
			want:   PlayerList{Online: 3, Max: 50, Names: []string{"Steve", "Alex", "Notch"}},
		},
		{
			name:   "short form",
			output: "Online 4 / 8",
			want:   PlayerList{Online: 4, Max: 8, Names: []string{}},
		},
		{
			name:   "unrecognized",
			output: "Unknown command",
			want:   PlayerList{Online: -1, Max: -1, Names: []string{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParsePlayerList(tt.output)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParsePlayerList(%q) = %+v; want %+v", tt.output, got, tt.want)
			}
		})
	}
}

func TestParseWhitelist(t *testing.T) {
	tests := []struct {
		output string
		want   []string
	}{
		{"There are 2 whitelisted players: Steve, Alex", []string{"Steve", "Alex"}},
		{"There are no whitelisted players", []string{}},
		{"whatever", []string{}},
	}
	for _, tt := range tests {
		if got := ParseWhitelist(tt.output); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseWhitelist(%q) = %q; want %q", tt.output, got, tt.want)
		}
	}
}

func TestParseSeed(t *testing.T) {
	tests := map[string]string{
		"Seed: [-4172144997902289642]": "-4172144997902289642",
		"Seed: 12345":                  "12345",
		"  [42] ":                      "42",
	}
	for output, want := range tests {
		if got := ParseSeed(output); got != want {
			t.Errorf("ParseSeed(%q) = %q; want %q", output, got, want)
		}
	}
}

func TestStripColorCodes(t *testing.T) {
	if got := StripColorCodes("§aHello §lWorld§r"); got != "Hello World" {
		t.Errorf("StripColorCodes() = %q", got)
	}
}
