// Package config handles configuration loading and validation for fairplay.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// PlatformDataDir returns the platform-specific data directory.
//
// Platform paths:
//   - macOS:   ~/Library/Application Support/fairplay/
//   - Linux:   ~/.local/share/fairplay/
//   - Windows: %APPDATA%\fairplay\
//
// Falls back to ~/.fairplay if platform detection fails.
func PlatformDataDir() string {
	switch runtime.GOOS {
	case "darwin":
		return macOSDataDir()
	case "linux":
		return linuxDataDir()
	case "windows":
		return windowsDataDir()
	default:
		return fallbackDataDir()
	}
}

// PlatformConfigDir returns the platform-specific config directory.
//
// Platform paths:
//   - macOS:   ~/Library/Application Support/fairplay/
//   - Linux:   ~/.config/fairplay/
//   - Windows: %APPDATA%\fairplay\
func PlatformConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		return macOSDataDir() // macOS uses same dir for config and data
	case "linux":
		return linuxConfigDir()
	case "windows":
		return windowsDataDir() // Windows uses same dir for config and data
	default:
		return fallbackDataDir()
	}
}

// PlatformLogDir returns the platform-specific log directory.
//
// Platform paths:
//   - macOS:   ~/Library/Logs/fairplay/
//   - Linux:   ~/.local/share/fairplay/logs/
//   - Windows: %LOCALAPPDATA%\fairplay\logs\
func PlatformLogDir() string {
	switch runtime.GOOS {
	case "darwin":
		home := userHome()
		return filepath.Join(home, "Library", "Logs", "fairplay")
	case "linux":
		return filepath.Join(linuxDataDir(), "logs")
	case "windows":
		return windowsLogDir()
	default:
		return filepath.Join(fallbackDataDir(), "logs")
	}
}

// macOS-specific paths

func macOSDataDir() string {
	return filepath.Join(userHome(), "Library", "Application Support", "fairplay")
}

// Linux-specific paths following XDG Base Directory Specification

func linuxDataDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "fairplay")
	}
	return filepath.Join(userHome(), ".local", "share", "fairplay")
}

func linuxConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "fairplay")
	}
	return filepath.Join(userHome(), ".config", "fairplay")
}

// Windows-specific paths

func windowsDataDir() string {
	if appData := os.Getenv("APPDATA"); appData != "" {
		return filepath.Join(appData, "fairplay")
	}
	return filepath.Join(userHome(), "AppData", "Roaming", "fairplay")
}

func windowsLogDir() string {
	if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
		return filepath.Join(localAppData, "fairplay", "logs")
	}
	return filepath.Join(userHome(), "AppData", "Local", "fairplay", "logs")
}

// Fallback path

func fallbackDataDir() string {
	return filepath.Join(userHome(), ".fairplay")
}

func userHome() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	home, _ := os.UserHomeDir()
	return home
}

// SupportedConfigFormats returns the list of supported config file formats.
func SupportedConfigFormats() []string {
	return []string{
		"toml",
		"json",
		"yaml",
		"yml",
	}
}

// FindConfigFile searches for a config file in standard locations.
// Returns the path to the first found config file, or empty string if
// none found.
func FindConfigFile() string {
	searchDirs := []string{
		".",
		PlatformConfigDir(),
		PlatformDataDir(),
	}

	for _, dir := range searchDirs {
		for _, ext := range SupportedConfigFormats() {
			path := filepath.Join(dir, "config."+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}

	return ""
}
