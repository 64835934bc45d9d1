package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danmuck/devprofile/internal/companion"
	"github.com/danmuck/devprofile/internal/protocol/frame"
	"github.com/danmuck/devprofile/internal/testutil/testlog"
)

const sampleDoc = `{
  // tablets
  "PACKAGES_TABLET": ["com.example.reader"],
  "PACKAGES_TABLET_DEVICE": {"BRAND": "Acme", "MODEL": "Tab 9", "SERIAL": ""},
  "PACKAGES_ORPHAN": ["com.example.orphan"],
  "PACKAGES_LAB": ["com.example.lab"],
  "PACKAGES_LAB_DEVICE": {"SERIAL": "LAB0001"},
}`

func writeDocument(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(sampleDoc), 0o600); err != nil {
		t.Fatalf("write document: %v", err)
	}
	return path
}

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(args, &out)
	return out.String(), err
}

func TestResolvePlansWrites(t *testing.T) {
	testlog.Start(t)

	doc := writeDocument(t, t.TempDir())
	out, err := runCmd(t, "resolve", "--document", doc, "--data-dir", "/data/user/0/com.example.reader")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	for _, want := range []string{
		"group TABLET",
		"android/os/Build.MODEL = Tab 9",
		"ro.product.vendor.brand = Acme",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "ro.serialno") {
		t.Fatalf("empty serial must not be planned:\n%s", out)
	}
}

func TestResolveCoreRevisionAndMiss(t *testing.T) {
	testlog.Start(t)

	doc := writeDocument(t, t.TempDir())
	out, err := runCmd(t, "resolve", "-d", doc, "-p", "com.example.reader", "--revision", "core")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if strings.Contains(out, "ro.product.vendor.brand") || !strings.Contains(out, "ro.product.model") {
		t.Fatalf("core revision plan unexpected:\n%s", out)
	}

	out, err = runCmd(t, "resolve", "-d", doc, "-p", "com.unknown")
	if err != nil || !strings.Contains(out, "not targeted") {
		t.Fatalf("expected not targeted, got %v:\n%s", err, out)
	}

	if _, err := runCmd(t, "resolve", "-d", doc, "-p", "com.example.orphan"); err == nil {
		t.Fatalf("group without profile must fail")
	}
	if _, err := runCmd(t, "resolve", "-d", doc); err == nil {
		t.Fatalf("missing package must fail")
	}
}

func TestGroupsListing(t *testing.T) {
	testlog.Start(t)

	doc := writeDocument(t, t.TempDir())
	out, err := runCmd(t, "groups", "--document", doc)
	if err != nil {
		t.Fatalf("groups: %v", err)
	}
	if !strings.Contains(out, "TABLET\tmembers=1\tprofile=ok") {
		t.Fatalf("unexpected listing:\n%s", out)
	}
	if !strings.Contains(out, "ORPHAN\tmembers=1\tprofile=missing PACKAGES_ORPHAN_DEVICE") {
		t.Fatalf("unexpected listing:\n%s", out)
	}
}

func TestFetchThroughHelper(t *testing.T) {
	testlog.Start(t)

	dir := t.TempDir()
	p, err := companion.NewProvider(writeDocument(t, dir), frame.DefaultLimits())
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	socket := filepath.Join(dir, "helper.sock")
	ln, err := companion.ListenSocket(socket, 0o600)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.Serve(ctx, ln) }()

	out, err := runCmd(t, "fetch", "--socket", socket, "--package", "com.example.reader")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !strings.Contains(out, "document: ") || !strings.Contains(out, "group TABLET") {
		t.Fatalf("unexpected fetch output:\n%s", out)
	}
}

func TestInitWritesTemplates(t *testing.T) {
	testlog.Start(t)

	dir := t.TempDir()
	mapping := filepath.Join(dir, "mapping.toml")
	if _, err := runCmd(t, "init", "--kind", "mapping", "--output", mapping); err != nil {
		t.Fatalf("init: %v", err)
	}
	doc := writeDocument(t, dir)
	out, err := runCmd(t, "resolve", "-d", doc, "-p", "com.example.reader", "--mapping", mapping)
	if err != nil {
		t.Fatalf("resolve with mapping: %v", err)
	}
	if !strings.Contains(out, "ro.product.model = Tab 9") || strings.Contains(out, "vendor") {
		t.Fatalf("mapping not used:\n%s", out)
	}
	if _, err := runCmd(t, "init", "--kind", "mapping", "--output", mapping); err == nil {
		t.Fatalf("existing file must not be overwritten without --force")
	}
}

func TestUnknownCommand(t *testing.T) {
	testlog.Start(t)

	if _, err := runCmd(t, "frobnicate"); err == nil {
		t.Fatalf("unknown command must fail")
	}
	if _, err := runCmd(t); err == nil {
		t.Fatalf("missing command must fail")
	}
	if _, err := runCmd(t, "resolve", "--help"); err != nil {
		t.Fatalf("help must not fail: %v", err)
	}
}

func TestResolveExtendedOnlyProfile(t *testing.T) {
	testlog.Start(t)

	doc := writeDocument(t, t.TempDir())
	out, err := runCmd(t, "resolve", "-d", doc, "-p", "com.example.lab")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !strings.Contains(out, "ro.serialno = LAB0001") {
		t.Fatalf("serial property not planned:\n%s", out)
	}
	if strings.Contains(out, "android/os/Build.SERIAL") {
		t.Fatalf("managed fields need a core identity:\n%s", out)
	}

	out, err = runCmd(t, "resolve", "-d", doc, "-p", "com.example.lab", "--revision", "core")
	if err != nil || !strings.Contains(out, "would not be targeted") {
		t.Fatalf("core revision writes nothing for this profile, got %v:\n%s", err, out)
	}
}
