package backend

import (
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// IsWSL checks if the current environment is Windows Subsystem for Linux.
func IsWSL() bool {
	return detectWSLFromData(readProcVersion(), os.Getenv("WSL_DISTRO_NAME"))
}

// detectWSLFromData checks for WSL indicators in the provided data (for testing).
func detectWSLFromData(procVersion, wslEnv string) bool {
	if wslEnv != "" {
		slog.Debug("WSL detected via environment variable", "distro", wslEnv)
		return true
	}

	procLower := strings.ToLower(procVersion)
	if strings.Contains(procLower, "microsoft") || strings.Contains(procLower, "wsl") {
		slog.Debug("WSL detected via /proc/version")
		return true
	}

	return false
}

func readProcVersion() string {
	content, err := os.ReadFile("/proc/version")
	if err != nil {
		slog.Debug("failed to read /proc/version", "error", err)
		return ""
	}
	return string(content)
}

// CommandExists checks if a command is available on PATH.
func CommandExists(command string) bool {
	if command == "" {
		return false
	}

	_, err := exec.LookPath(command)
	exists := err == nil
	slog.Debug("command existence check", "command", command, "exists", exists)
	return exists
}

// DetectOptimalKind determines the best backend kind for the current system.
func DetectOptimalKind() string {
	return detectOptimalKindWithChecker(IsWSL(), CommandExists)
}

// detectOptimalKindWithChecker allows dependency injection for testing.
func detectOptimalKindWithChecker(isWSL bool, commandExists func(string) bool) string {
	slog.Debug("detecting optimal audio backend", "is_wsl", isWSL)

	if isWSL {
		// WSLg routes audio through a PulseAudio server. The beep/oto
		// pipeline drives it without the raw-device crackling malgo
		// shows under WSL, so prefer it whenever Pulse is reachable.
		if commandExists("pulseaudio") || commandExists("pactl") {
			slog.Debug("WSL with PulseAudio detected, preferring beep backend")
			return KindBeep
		}

		slog.Warn("WSL without PulseAudio, falling back to malgo (may crackle)")
		return KindMalgo
	}

	slog.Debug("native system detected, preferring malgo backend")
	return KindMalgo
}
