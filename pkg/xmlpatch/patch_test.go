package xmlpatch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/winxky/cordova-plugman/pkg/manifest"
)

const cordovaConfig = `<?xml version="1.0" encoding="utf-8"?>
<cordova>
    <access origin="http://example.com"/>
    <plugins>
        <plugin name="App" value="org.apache.cordova.App"/>
        <plugin name="Device" value="org.apache.cordova.Device"/>
    </plugins>
</cordova>
`

func mustFragment(t *testing.T, raw string) []*etree.Element {
	t.Helper()
	els, err := ParseFragment(raw)
	require.NoError(t, err)
	return els
}

func serialize(t *testing.T, doc *etree.Document) string {
	t.Helper()
	s, err := doc.WriteToString()
	require.NoError(t, err)
	return s
}

func TestGraftAppend(t *testing.T) {
	doc := mustDoc(t, cordovaConfig)
	frag := mustFragment(t, `<plugin name="Echo" value="org.acme.echo.Echo"/>`)

	inserted, err := Graft(doc, frag, "/cordova/plugins", Placement{})
	require.NoError(t, err)
	assert.Equal(t, frag, inserted)

	plugins := doc.FindElement("/cordova/plugins")
	children := plugins.ChildElements()
	require.Len(t, children, 3)
	assert.Equal(t, "Echo", children[2].SelectAttrValue("name", ""))

	out := serialize(t, doc)
	assert.Contains(t, out, "\n        <plugin name=\"Echo\" value=\"org.acme.echo.Echo\"/>\n    </plugins>")
}

func TestGraftIsIdempotent(t *testing.T) {
	doc := mustDoc(t, cordovaConfig)
	frag := mustFragment(t, `<plugin value="org.acme.echo.Echo" name="Echo"/>`)

	_, err := Graft(doc, frag, "/cordova/plugins", Placement{})
	require.NoError(t, err)
	once := serialize(t, doc)

	inserted, err := Graft(doc, frag, "/cordova/plugins", Placement{})
	require.NoError(t, err)
	assert.Empty(t, inserted)
	assert.Equal(t, once, serialize(t, doc))
}

func TestGraftReportsOnlyInsertedElements(t *testing.T) {
	doc := mustDoc(t, cordovaConfig)
	frag := mustFragment(t, `<plugin name="App" value="org.apache.cordova.App"/><plugin name="Echo" value="org.acme.echo.Echo"/>`)

	inserted, err := Graft(doc, frag, "/cordova/plugins", Placement{})
	require.NoError(t, err)
	require.Len(t, inserted, 1)
	assert.Equal(t, "Echo", inserted[0].SelectAttrValue("name", ""))

	_, err = Prune(doc, inserted, "/cordova/plugins")
	require.NoError(t, err)
	assert.Equal(t, cordovaConfig, serialize(t, doc))
}

func TestGraftAfter(t *testing.T) {
	doc := mustDoc(t, androidManifest)
	frag := mustFragment(t, `<activity android:name="EchoActivity"/><service android:name="EchoService"/>`)

	_, err := Graft(doc, frag, "/manifest", Placement{
		Mode:  manifest.ModeAfter,
		After: []string{"service", "uses-permission"},
	})
	require.NoError(t, err)

	var tags []string
	for _, el := range doc.Root().ChildElements() {
		tags = append(tags, el.Tag)
	}
	assert.Equal(t, []string{"uses-permission", "activity", "service", "application"}, tags)
}

func TestGraftAfterFallsBackToAppend(t *testing.T) {
	doc := mustDoc(t, cordovaConfig)
	frag := mustFragment(t, `<feature name="Echo"/>`)

	_, err := Graft(doc, frag, "/cordova", Placement{Mode: manifest.ModeAfter, After: []string{"preference"}})
	require.NoError(t, err)

	children := doc.Root().ChildElements()
	assert.Equal(t, "feature", children[len(children)-1].Tag)
}

func TestGraftOverwrite(t *testing.T) {
	doc := mustDoc(t, cordovaConfig)
	frag := mustFragment(t, `<plugin name="Device" value="org.acme.Device"/>`)

	_, err := Graft(doc, frag, "/cordova/plugins", Placement{Mode: manifest.ModeOverwrite})
	require.NoError(t, err)

	devices := doc.FindElements("/cordova/plugins/plugin[@name='Device']")
	require.Len(t, devices, 1)
	assert.Equal(t, "org.acme.Device", devices[0].SelectAttrValue("value", ""))
}

func TestGraftIntoEmptyAnchor(t *testing.T) {
	doc := mustDoc(t, "<widget>\n    <features/>\n</widget>\n")
	frag := mustFragment(t, `<feature id="org.acme.echo"/>`)

	_, err := Graft(doc, frag, "/widget/features", Placement{})
	require.NoError(t, err)

	assert.Equal(t,
		"<widget>\n    <features>\n        <feature id=\"org.acme.echo\"/>\n    </features>\n</widget>\n",
		serialize(t, doc))
}

func TestGraftAnchorNotFound(t *testing.T) {
	doc := mustDoc(t, cordovaConfig)
	frag := mustFragment(t, `<plugin name="Echo"/>`)

	_, err := Graft(doc, frag, "/widget/plugins", Placement{})
	assert.ErrorIs(t, err, ErrAnchorNotFound)
	assert.Contains(t, err.Error(), "/widget/plugins")

	_, err = Prune(doc, frag, "/cordova/features")
	assert.ErrorIs(t, err, ErrAnchorNotFound)
}

func TestPrune(t *testing.T) {
	doc := mustDoc(t, cordovaConfig)
	frag := mustFragment(t, `<plugin name="Echo" value="org.acme.echo.Echo"/>`)

	_, err := Graft(doc, frag, "/cordova/plugins", Placement{})
	require.NoError(t, err)

	changed, err := Prune(doc, frag, "/cordova/plugins")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, cordovaConfig, serialize(t, doc))

	changed, err = Prune(doc, frag, "/cordova/plugins")
	require.NoError(t, err)
	assert.False(t, changed, "pruning an absent fragment changes nothing")
}

func TestPruneOnlyRemovesExactMatch(t *testing.T) {
	doc := mustDoc(t, cordovaConfig)
	frag := mustFragment(t, `<plugin name="Device" value="something.else"/>`)

	changed, err := Prune(doc, frag, "/cordova/plugins")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, cordovaConfig, serialize(t, doc))
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"attribute order", `<p a="1" b="2"/>`, `<p b="2" a="1"/>`, true},
		{"whitespace in text", "<p>hello   world</p>", "<p>\n  hello world\n</p>", true},
		{"different value", `<p a="1"/>`, `<p a="2"/>`, false},
		{"extra attribute", `<p a="1"/>`, `<p a="1" b="2"/>`, false},
		{"namespace prefix", `<p android:name="x"/>`, `<p name="x"/>`, false},
		{"nested children", `<p><q x="1"/></p>`, `<p>  <q x="1"/>  </p>`, true},
		{"child mismatch", `<p><q x="1"/></p>`, `<p><q x="2"/></p>`, false},
		{"tag mismatch", `<p/>`, `<q/>`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := mustFragment(t, tt.a)[0]
			b := mustFragment(t, tt.b)[0]
			assert.Equal(t, tt.want, Equal(a, b))
		})
	}
}

func TestParseFragmentErrors(t *testing.T) {
	_, err := ParseFragment("just text")
	assert.Error(t, err)

	_, err = ParseFragment("<open>")
	assert.Error(t, err)
}

func TestLoadAndSaveDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.xml")
	require.NoError(t, os.WriteFile(path, []byte(cordovaConfig), 0o600))

	doc, err := LoadDocument(path)
	require.NoError(t, err)
	require.NoError(t, SaveDocument(doc, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, cordovaConfig, string(data), "untouched documents round-trip byte for byte")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	_, err = LoadDocument(filepath.Join(t.TempDir(), "missing.xml"))
	assert.Error(t, err)
}

func TestGraftPruneRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		doc := etree.NewDocument()
		if err := doc.ReadFromString(cordovaConfig); err != nil {
			t.Fatalf("parse: %v", err)
		}
		before, _ := doc.WriteToString()

		n := rapid.IntRange(1, 4).Draw(t, "elements")
		var parts []string
		for i := 0; i < n; i++ {
			name := rapid.StringMatching(`[a-z]{1,8}`).Draw(t, "name")
			value := rapid.StringMatching(`[A-Za-z0-9.]{0,12}`).Draw(t, "value")
			parts = append(parts, fmt.Sprintf(`<graft-%d name=%q value=%q/>`, i, name, value))
		}
		if rapid.Bool().Draw(t, "existing") {
			// Already under /cordova/plugins; must survive the round trip there.
			existing := `<plugin name="App" value="org.apache.cordova.App"/>`
			at := rapid.IntRange(0, len(parts)).Draw(t, "existingAt")
			parts = append(parts[:at], append([]string{existing}, parts[at:]...)...)
		}
		frag, err := ParseFragment(strings.Join(parts, ""))
		if err != nil {
			t.Fatalf("fragment: %v", err)
		}

		selector := rapid.SampledFrom([]string{"/cordova", "/cordova/plugins", "plugins"}).Draw(t, "selector")
		mode := rapid.SampledFrom([]manifest.Mode{manifest.ModeAppend, manifest.ModeAfter, manifest.ModeOverwrite}).Draw(t, "mode")
		place := Placement{Mode: mode, After: []string{"access", "plugin"}}

		inserted, err := Graft(doc, frag, selector, place)
		if err != nil {
			t.Fatalf("graft: %v", err)
		}
		if len(inserted) == 0 {
			t.Fatalf("nothing inserted for %d fragment elements", len(frag))
		}
		grafted, _ := doc.WriteToString()

		if again, err := Graft(doc, frag, selector, place); err != nil || len(again) != 0 {
			t.Fatalf("second graft inserted=%d err=%v", len(again), err)
		}
		if again, _ := doc.WriteToString(); again != grafted {
			t.Fatalf("second graft altered the document")
		}

		if _, err := Prune(doc, inserted, selector); err != nil {
			t.Fatalf("prune: %v", err)
		}
		if after, _ := doc.WriteToString(); after != before {
			t.Fatalf("round trip mismatch:\n%s\nvs\n%s", before, after)
		}
	})
}
