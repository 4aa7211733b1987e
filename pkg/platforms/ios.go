package platforms

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/winxky/cordova-plugman/pkg/manifest"
)

// ErrNoXcodeProject is returned when an iOS project has no .xcodeproj.
var ErrNoXcodeProject = errors.New("no .xcodeproj found")

type ios struct{}

// NewIOS returns the iOS handler. The project name is taken from the
// <Name>.xcodeproj directory; sources go to <Name>/Plugins/<target-dir>.
func NewIOS() Handler {
	return &handler{layout: ios{}}
}

func (ios) name() string       { return "ios" }
func (ios) defaultWWW() string { return "www" }

func (ios) sourceTarget(projectDir string, sf manifest.SourceFile) (string, error) {
	name, err := xcodeProjectName(projectDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(name, "Plugins", sf.TargetDir, filepath.Base(sf.Src)), nil
}

func (ios) pruneBoundary(projectDir string) (string, error) {
	name, err := xcodeProjectName(projectDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(name, "Plugins"), nil
}

func (ios) configTarget(projectDir, target string) (string, error) {
	target = filepath.Clean(target)
	if target != "config.xml" && !strings.HasSuffix(target, "-Info.plist") {
		return target, nil
	}

	name, err := xcodeProjectName(projectDir)
	if err != nil {
		return "", err
	}
	if target == "config.xml" {
		return filepath.Join(name, "config.xml"), nil
	}
	return filepath.Join(name, name+"-Info.plist"), nil
}

func (ios) variables(string) map[string]string {
	return nil
}

func xcodeProjectName(projectDir string) (string, error) {
	entries, err := os.ReadDir(projectDir)
	if err != nil {
		return "", fmt.Errorf("failed to read project directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() && strings.HasSuffix(entry.Name(), ".xcodeproj") {
			return strings.TrimSuffix(entry.Name(), ".xcodeproj"), nil
		}
	}
	return "", fmt.Errorf("%w in %s", ErrNoXcodeProject, projectDir)
}
