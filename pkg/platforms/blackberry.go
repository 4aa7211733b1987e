package platforms

import (
	"path/filepath"

	"github.com/winxky/cordova-plugman/pkg/manifest"
)

type blackberry struct{}

// NewBlackBerry returns the BlackBerry handler.
func NewBlackBerry() Handler {
	return &handler{layout: blackberry{}}
}

func (blackberry) name() string       { return "blackberry" }
func (blackberry) defaultWWW() string { return "www" }

func (blackberry) sourceTarget(_ string, sf manifest.SourceFile) (string, error) {
	return filepath.Join(sf.TargetDir, filepath.Base(sf.Src)), nil
}

// Extensions live under ext-qnx/<plugin>; the ext-qnx directory itself stays.
func (blackberry) pruneBoundary(string) (string, error) {
	return "ext-qnx", nil
}

func (blackberry) configTarget(_ string, target string) (string, error) {
	return filepath.Clean(target), nil
}

func (blackberry) variables(string) map[string]string {
	return nil
}
