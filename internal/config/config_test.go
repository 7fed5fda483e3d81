package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.viam.com/test"
)

func TestLoadMissingFile(t *testing.T) {
	m := NewManagerWithPath(filepath.Join(t.TempDir(), "settings.json"))
	test.That(t, m.Load(), test.ShouldBeNil)
	test.That(t, m.Get(), test.ShouldResemble, DefaultSettings())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	m := NewManagerWithPath(path)
	m.Set(Settings{Address: "10.0.0.7:9876"})
	test.That(t, m.Save(), test.ShouldBeNil)

	m2 := NewManagerWithPath(path)
	test.That(t, m2.Load(), test.ShouldBeNil)
	test.That(t, m2.Get(), test.ShouldResemble, Settings{Address: "10.0.0.7:9876"})
}

func TestSavedFileShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	m := NewManagerWithPath(path)
	m.SetAddress("host:1")
	test.That(t, m.Save(), test.ShouldBeNil)

	data, err := os.ReadFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, strings.Contains(string(data), `"address": "host:1"`), test.ShouldBeTrue)
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	test.That(t, os.WriteFile(path, []byte("{truncated"), 0644), test.ShouldBeNil)

	m := NewManagerWithPath(path)
	test.That(t, m.Load(), test.ShouldNotBeNil)
	// Defaults survive a failed load.
	test.That(t, m.Get(), test.ShouldResemble, DefaultSettings())
}

func TestChangeCallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	test.That(t, os.WriteFile(path, []byte(`{"address":"loaded:9"}`), 0644), test.ShouldBeNil)

	m := NewManagerWithPath(path)
	var got []Settings
	m.RegisterChangeCallback(func(s Settings) { got = append(got, s) })

	test.That(t, m.Load(), test.ShouldBeNil)
	m.SetAddress("hosta:1")
	m.Set(Settings{Address: "hostb:2"})

	test.That(t, got, test.ShouldResemble, []Settings{
		{Address: "loaded:9"},
		{Address: "hosta:1"},
		{Address: "hostb:2"},
	})
}
