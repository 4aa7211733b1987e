package platforms

import (
	"os"
	"path/filepath"

	"github.com/winxky/cordova-plugman/pkg/manifest"
	"github.com/winxky/cordova-plugman/pkg/xmlpatch"
)

const (
	androidConfigXML  = "res/xml/config.xml"
	androidPluginsXML = "res/xml/plugins.xml"
	androidManifest   = "AndroidManifest.xml"
)

type android struct{}

// NewAndroid returns the Android handler. Web assets live in assets/www,
// source files go to <target-dir>/<file> and pruning stops at src.
func NewAndroid() Handler {
	return &handler{layout: android{}}
}

func (android) name() string       { return "android" }
func (android) defaultWWW() string { return filepath.Join("assets", "www") }

func (android) sourceTarget(_ string, sf manifest.SourceFile) (string, error) {
	return filepath.Join(sf.TargetDir, filepath.Base(sf.Src)), nil
}

func (android) pruneBoundary(string) (string, error) {
	return "src", nil
}

// Older projects keep the plugin list in res/xml/plugins.xml; whichever of the
// two exists is used when the declared one does not.
func (android) configTarget(projectDir, target string) (string, error) {
	target = filepath.Clean(target)

	var other string
	switch filepath.ToSlash(target) {
	case androidConfigXML:
		other = androidPluginsXML
	case androidPluginsXML:
		other = androidConfigXML
	default:
		return target, nil
	}

	if exists(filepath.Join(projectDir, target)) || !exists(filepath.Join(projectDir, other)) {
		return target, nil
	}
	return filepath.FromSlash(other), nil
}

func (android) variables(projectDir string) map[string]string {
	doc, err := xmlpatch.LoadDocument(filepath.Join(projectDir, androidManifest))
	if err != nil {
		return nil
	}
	pkg := doc.Root().SelectAttrValue("package", "")
	if pkg == "" {
		return nil
	}
	return map[string]string{"PACKAGE_NAME": pkg}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
