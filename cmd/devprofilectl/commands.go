package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/danmuck/devprofile/internal/config"
	"github.com/danmuck/devprofile/internal/fetch"
	"github.com/danmuck/devprofile/internal/overlay"
	"github.com/danmuck/devprofile/internal/profile"
	"github.com/danmuck/devprofile/internal/protocol/frame"
	"github.com/spf13/pflag"
)

const fetchTimeout = 5 * time.Second

// targetFlags are shared by every command that resolves a package.
type targetFlags struct {
	pkg      string
	dataDir  string
	mapping  string
	revision string
	prefix   string
	suffix   string
}

func (f *targetFlags) add(fs *pflag.FlagSet) {
	fs.StringVarP(&f.pkg, "package", "p", "", "package identifier to resolve")
	fs.StringVar(&f.dataDir, "data-dir", "", "app data directory to derive the package identifier from")
	fs.StringVar(&f.mapping, "mapping", "", "overlay mapping TOML file")
	fs.StringVar(&f.revision, "revision", "", "built-in overlay revision: extended|core")
	fs.StringVar(&f.prefix, "prefix", profile.DefaultMembershipPrefix, "membership key prefix")
	fs.StringVar(&f.suffix, "suffix", profile.DefaultProfileSuffix, "profile key suffix")
}

func (f *targetFlags) resolver() profile.Resolver {
	return profile.Resolver{Prefix: f.prefix, Suffix: f.suffix}
}

func (f *targetFlags) packageID() (string, error) {
	pkg := strings.TrimSpace(f.pkg)
	dir := strings.TrimSpace(f.dataDir)
	switch {
	case pkg != "" && dir != "":
		return "", fmt.Errorf("--package and --data-dir are mutually exclusive")
	case pkg != "":
		return pkg, nil
	case dir != "":
		return profile.PackageFromDataDir(dir)
	default:
		return "", fmt.Errorf("--package or --data-dir is required")
	}
}

func (f *targetFlags) overlayMapping() (overlay.Mapping, error) {
	if path := strings.TrimSpace(f.mapping); path != "" {
		if strings.TrimSpace(f.revision) != "" {
			return overlay.Mapping{}, fmt.Errorf("--mapping and --revision are mutually exclusive")
		}
		return config.LoadMapping(path)
	}
	return overlay.MappingFor(overlay.Revision(f.revision))
}

func runResolve(args []string, out io.Writer) error {
	var target targetFlags
	var document string
	fs := pflag.NewFlagSet("resolve", pflag.ContinueOnError)
	fs.StringVarP(&document, "document", "d", "", "device profile document (JSON or JSONC)")
	target.add(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(document) == "" {
		return fmt.Errorf("--document is required")
	}
	raw, err := os.ReadFile(document)
	if err != nil {
		return err
	}
	return resolveAndPlan(raw, &target, out)
}

func runFetch(args []string, out io.Writer) error {
	var target targetFlags
	var socket string
	fs := pflag.NewFlagSet("fetch", pflag.ContinueOnError)
	fs.StringVarP(&socket, "socket", "s", "", "helper unix socket path")
	target.add(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	raw, err := fetchDocument(socket)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "document: %d bytes\n", len(raw))
	if strings.TrimSpace(target.pkg) == "" && strings.TrimSpace(target.dataDir) == "" {
		return nil
	}
	return resolveAndPlan(raw, &target, out)
}

func runGroups(args []string, out io.Writer) error {
	var document, socket, prefix, suffix string
	fs := pflag.NewFlagSet("groups", pflag.ContinueOnError)
	fs.StringVarP(&document, "document", "d", "", "device profile document (JSON or JSONC)")
	fs.StringVarP(&socket, "socket", "s", "", "helper unix socket path")
	fs.StringVar(&prefix, "prefix", profile.DefaultMembershipPrefix, "membership key prefix")
	fs.StringVar(&suffix, "suffix", profile.DefaultProfileSuffix, "profile key suffix")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var raw []byte
	var err error
	switch {
	case strings.TrimSpace(document) != "" && strings.TrimSpace(socket) != "":
		return fmt.Errorf("--document and --socket are mutually exclusive")
	case strings.TrimSpace(document) != "":
		raw, err = os.ReadFile(document)
	case strings.TrimSpace(socket) != "":
		raw, err = fetchDocument(socket)
	default:
		return fmt.Errorf("--document or --socket is required")
	}
	if err != nil {
		return err
	}

	doc, err := profile.ParseDocument(raw)
	if err != nil {
		return err
	}
	r := profile.Resolver{Prefix: prefix, Suffix: suffix}
	for _, g := range r.Groups(doc) {
		status := "ok"
		if !g.HasProfile {
			status = "missing " + r.ProfileKey(g.Name)
		}
		fmt.Fprintf(out, "%s\tmembers=%d\tprofile=%s\n", g.Name, g.Members, status)
	}
	return nil
}

func runInit(args []string, out io.Writer) error {
	var kind, output string
	var force bool
	fs := pflag.NewFlagSet("init", pflag.ContinueOnError)
	fs.StringVar(&kind, "kind", "mapping", "template kind: mapping|helper")
	fs.StringVarP(&output, "output", "o", "", "output path for the template")
	fs.BoolVar(&force, "force", false, "overwrite an existing file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(output) == "" {
		return fmt.Errorf("--output is required")
	}
	if err := config.WriteTemplate(output, kind, force); err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %s template to %s\n", kind, output)
	return nil
}

func fetchDocument(socket string) ([]byte, error) {
	connector := fetch.UnixConnector{Path: socket, Timeout: fetchTimeout}
	return fetch.Fetch(connector, frame.DefaultLimits())
}

func resolveAndPlan(raw []byte, target *targetFlags, out io.Writer) error {
	pkg, err := target.packageID()
	if err != nil {
		return err
	}
	mapping, err := target.overlayMapping()
	if err != nil {
		return err
	}

	res, err := target.resolver().Resolve(raw, pkg)
	switch {
	case errors.Is(err, profile.ErrNotListed):
		fmt.Fprintf(out, "package %s: not targeted\n", pkg)
		return nil
	case err != nil:
		return err
	}

	fmt.Fprintf(out, "package %s: group %s\n", pkg, res.Group)
	for _, f := range profile.AllFields() {
		if v := res.Device.Value(f); v != "" {
			fmt.Fprintf(out, "  %-12s %s\n", f, v)
		}
	}
	switch {
	case res.Device.IsEmpty():
		fmt.Fprintln(out, "profile sets no fields: process would not be targeted")
		return nil
	case !mapping.Writes(res.Device):
		fmt.Fprintln(out, "mapping writes none of the profile fields: process would not be targeted")
		return nil
	}

	report, err := planOverlay(mapping, res.Device)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "planned writes:")
	for _, o := range report.Outcomes {
		if o.Status != overlay.StatusApplied {
			continue
		}
		fmt.Fprintf(out, "  %-8s %s = %s\n", o.Surface, o.Target, res.Device.Value(o.Field))
	}
	return nil
}
