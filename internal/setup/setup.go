// Package setup runs one provisioning pass: resolve the base DN, obtain the
// template bundle, render it and describe what the operator does next.
package setup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/aakso/totp-ldap-setup/internal/bundle"
	"github.com/aakso/totp-ldap-setup/internal/credential"
	"github.com/aakso/totp-ldap-setup/internal/fetch"
	"github.com/aakso/totp-ldap-setup/internal/globals"
	"github.com/aakso/totp-ldap-setup/internal/logging"
	"github.com/aakso/totp-ldap-setup/internal/prompt"
	"github.com/aakso/totp-ldap-setup/internal/render"
	"github.com/aakso/totp-ldap-setup/internal/ui"
)

var Log *logrus.Entry = logging.GetLogger("setup").WithField("pkg", "setup")

type Options struct {
	// Positional arguments, the first one is the base DN
	Args   []string
	Prompt prompt.Options

	// Use the templates compiled into the binary
	Offline bool
	// Use templates from this directory instead of downloading
	Source string

	Fetch      *fetch.Config
	Render     *render.Config
	Credential *credential.Config

	// Ask the operator for the service account password
	AskPassword bool
	Ask         credential.AskFunc

	// Override the credential chains, defaults come from Credential
	Sources []credential.Source
	Hashers []credential.Hasher

	Out *ui.Printer
}

type File struct {
	Name string
	Path string
	Size int64
}

type Report struct {
	BaseDN    string
	Origin    string
	OutputDir string
	AccountDN string
	Hashed    bool
	Files     []File
	Commands  []string
}

// Run executes the steps in order. The scratch bundle is removed before
// Run returns, whatever the outcome.
func Run(ctx context.Context, opts Options) (*Report, error) {
	if opts.Out == nil {
		opts.Out = ui.New()
	}
	if opts.Credential == nil {
		opts.Credential = credential.Defaults
	}
	if opts.Prompt.Out == nil {
		opts.Prompt.Out = opts.Out
	}
	log := Log.WithField("action", "run")

	dn, err := prompt.Resolve(opts.Args, opts.Prompt)
	if err != nil {
		return nil, err
	}
	log = log.WithField("basedn", dn)
	opts.Out.Info("Base DN: %s", dn)

	var password string
	if opts.AskPassword {
		if password, err = credential.Prompt(opts.Ask); err != nil {
			return nil, err
		}
	}

	b, err := openBundle(ctx, opts)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := b.Close(); err != nil {
			log.WithError(err).Warn("cannot remove scratch directory")
		}
	}()
	opts.Out.Info("Using templates from %s", b.Origin)
	if opts.Offline {
		opts.Out.Info("Built-in schema is a stand-in for the upstream %s/%s schema", globals.DefaultOwner, globals.DefaultRepo)
	}

	sources := opts.Sources
	if sources == nil {
		sources = credential.DefaultSources(opts.Credential)
	}
	hashers := opts.Hashers
	if hashers == nil {
		hashers = credential.DefaultHashers(opts.Credential)
	}
	r := &render.Renderer{
		Config:   opts.Render,
		Out:      opts.Out,
		Length:   opts.Credential.Length,
		Sources:  sources,
		Hashers:  hashers,
		Password: password,
	}
	res, err := r.Render(b, dn)
	if err != nil {
		return nil, err
	}
	log.WithField("output", res.OutputDir).Debug("rendered templates")
	return newReport(dn, b.Origin, res), nil
}

func openBundle(ctx context.Context, opts Options) (*bundle.Bundle, error) {
	switch {
	case opts.Offline:
		return bundle.Embedded()
	case opts.Source != "":
		return bundle.Local(opts.Source)
	}
	f, err := fetch.New(opts.Fetch)
	if err != nil {
		return nil, err
	}
	opts.Out.Info("Downloading templates from %s/%s", f.Config.Owner, f.Config.Repo)
	return f.Fetch(ctx)
}

func newReport(dn, origin string, res *render.Result) *Report {
	rep := &Report{
		BaseDN:    dn,
		Origin:    origin,
		OutputDir: res.OutputDir,
		AccountDN: res.AccountDN,
		Hashed:    res.Hashed,
	}
	for _, a := range res.Artifacts {
		if a.Skipped {
			continue
		}
		st, err := os.Stat(a.Path)
		if err != nil {
			Log.WithError(err).WithField("file", a.Path).Debug("artifact missing from output")
			continue
		}
		rep.Files = append(rep.Files, File{Name: a.Name, Path: a.Path, Size: st.Size()})
	}
	if res.Produced(bundle.SchemaFile) {
		rep.Commands = append(rep.Commands, fmt.Sprintf("ldapadd -Y EXTERNAL -H ldapi:/// -f %s", bundle.SchemaFile))
	}
	if res.Produced(bundle.ACLFile) {
		rep.Commands = append(rep.Commands, fmt.Sprintf("ldapmodify -Y EXTERNAL -H ldapi:/// -f %s", bundle.ACLFile))
	}
	if res.Produced(bundle.ServiceAccountFile) {
		rep.Commands = append(rep.Commands, fmt.Sprintf("ldapadd -x -D \"cn=admin,%s\" -W -f %s", dn, bundle.ServiceAccountFile))
	}
	return rep
}

// Print writes the summary for the operator.
func (r *Report) Print(p *ui.Printer) {
	p.Success("Setup complete")
	p.Println("")
	p.Println("Files in %s:", r.OutputDir)
	for _, f := range r.Files {
		p.Println("  %-32s %s", f.Name, humanize.IBytes(uint64(f.Size)))
	}
	p.Println("")
	p.Println("Base DN: %s", r.BaseDN)
	if r.AccountDN != "" {
		p.Println("Service account: %s", r.AccountDN)
		p.Println("Password stored in %s, delete it once saved elsewhere", filepath.Join(r.OutputDir, render.PasswordFile))
	}
	if len(r.Commands) == 0 {
		return
	}
	p.Println("")
	p.Println("Next steps, run from %s:", r.OutputDir)
	for i, c := range r.Commands {
		p.Println("  %d. %s", i+1, c)
	}
}

// Describe names the failure class of an error returned by Run.
func Describe(err error) string {
	switch errors.Cause(err) {
	case prompt.ErrInvalidArgument:
		return "invalid base DN"
	case prompt.ErrNoTerminal:
		return "no terminal"
	case prompt.ErrAborted:
		return "aborted"
	case fetch.ErrUnavailable:
		return "template download failed"
	}
	return "setup failed"
}
