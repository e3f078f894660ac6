package backend

import "testing"

func TestDetectWSLFromData(t *testing.T) {
	testCases := []struct {
		name        string
		procVersion string
		wslEnv      string
		expected    bool
	}{
		{
			name:        "native linux",
			procVersion: "Linux version 6.8.0-45-generic (buildd@lcy02) (gcc 13.2.0)",
			wslEnv:      "",
			expected:    false,
		},
		{
			name:        "wsl2 via proc version",
			procVersion: "Linux version 5.15.153.1-microsoft-standard-WSL2",
			wslEnv:      "",
			expected:    true,
		},
		{
			name:        "wsl via env",
			procVersion: "Linux version 6.8.0-45-generic",
			wslEnv:      "Ubuntu-22.04",
			expected:    true,
		},
		{
			name:        "case insensitive proc match",
			procVersion: "Linux version 4.4.0 Microsoft build",
			wslEnv:      "",
			expected:    true,
		},
		{
			name:        "empty everything",
			procVersion: "",
			wslEnv:      "",
			expected:    false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := detectWSLFromData(tc.procVersion, tc.wslEnv); got != tc.expected {
				t.Errorf("detectWSLFromData = %v, expected %v", got, tc.expected)
			}
		})
	}
}

func TestDetectOptimalKindWithChecker(t *testing.T) {
	hasAll := func(string) bool { return true }
	hasNone := func(string) bool { return false }
	hasPulseOnly := func(cmd string) bool { return cmd == "pulseaudio" }

	testCases := []struct {
		name     string
		isWSL    bool
		checker  func(string) bool
		expected string
	}{
		{"native", false, hasAll, KindMalgo},
		{"native without commands", false, hasNone, KindMalgo},
		{"wsl with pactl", true, hasAll, KindBeep},
		{"wsl with pulseaudio daemon", true, hasPulseOnly, KindBeep},
		{"wsl without pulse", true, hasNone, KindMalgo},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := detectOptimalKindWithChecker(tc.isWSL, tc.checker); got != tc.expected {
				t.Errorf("detectOptimalKindWithChecker = %q, expected %q", got, tc.expected)
			}
		})
	}
}

func TestCommandExists(t *testing.T) {
	if CommandExists("") {
		t.Error("empty command should not exist")
	}
	if CommandExists("definitely-not-a-real-command-xyz-123") {
		t.Error("nonsense command should not exist")
	}
}
