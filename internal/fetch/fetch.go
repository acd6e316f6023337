// Package fetch retrieves the upstream LDIF template bundle.
package fetch

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/blang/semver/v4"
	"github.com/pkg/errors"
	"gopkg.in/resty.v1"

	"github.com/aakso/totp-ldap-setup/internal/bundle"
	"github.com/aakso/totp-ldap-setup/internal/globals"
)

var ErrUnavailable = errors.New("template bundle unavailable")

type release struct {
	TagName    string `json:"tag_name"`
	TarballURL string `json:"tarball_url"`
}

type Fetcher struct {
	Config *Config
	rest   *resty.Client
}

func New(conf *Config) (*Fetcher, error) {
	if conf == nil {
		conf = Defaults
	}
	f := &Fetcher{Config: conf}
	if err := f.initREST(); err != nil {
		return nil, err
	}
	return f, nil
}

// Fetch returns the latest release bundle, or the default branch when no
// release can be used. The caller owns the returned bundle and must Close it.
func (f *Fetcher) Fetch(ctx context.Context) (*bundle.Bundle, error) {
	log := Log.WithField("action", "fetch").
		WithField("repo", f.Config.Owner+"/"+f.Config.Repo)

	tarball, tag, err := f.releaseTarball(ctx)
	switch {
	case err != nil:
		log.WithError(err).Info("release lookup failed, falling back to branch archive")
	case tarball == "":
		log.Info("no release tarball published, falling back to branch archive")
	default:
		b, err := f.download(ctx, tarball, fmt.Sprintf("release %s", tag))
		if err == nil {
			return b, nil
		}
		log.WithError(err).Info("release download failed, falling back to branch archive")
	}

	b, err := f.download(ctx, f.branchURL(), fmt.Sprintf("branch %s", f.Config.Branch))
	if err != nil {
		return nil, errors.Wrap(ErrUnavailable, err.Error())
	}
	return b, nil
}

func (f *Fetcher) releaseURL() string {
	base := strings.TrimSuffix(f.Config.APIURL, "/")
	if f.Config.Release != "" {
		return fmt.Sprintf("%s/repos/%s/%s/releases/tags/%s", base, f.Config.Owner, f.Config.Repo, url.PathEscape(f.Config.Release))
	}
	return fmt.Sprintf("%s/repos/%s/%s/releases/latest", base, f.Config.Owner, f.Config.Repo)
}

func (f *Fetcher) branchURL() string {
	return fmt.Sprintf("%s/%s/%s/archive/refs/heads/%s.tar.gz",
		strings.TrimSuffix(f.Config.ArchiveURL, "/"),
		f.Config.Owner,
		f.Config.Repo,
		url.PathEscape(f.Config.Branch))
}

// releaseTarball queries the release metadata. An empty URL without error
// means no release exists.
func (f *Fetcher) releaseTarball(ctx context.Context) (string, string, error) {
	log := Log.WithField("action", "releaseTarball")
	target := f.releaseURL()
	log.WithField("url", target).Debug("querying release metadata")
	res, err := f.rest.R().
		SetContext(ctx).
		SetHeader("Accept", "application/vnd.github+json").
		SetResult(&release{}).
		Get(target)
	if err != nil {
		return "", "", errors.Wrap(err, "could not query release metadata")
	}
	if res.StatusCode() == http.StatusNotFound {
		return "", "", nil
	}
	if res.StatusCode() != http.StatusOK {
		return "", "", errors.Errorf("could not query release metadata, got code %d", res.StatusCode())
	}
	rel, _ := res.Result().(*release)
	if rel == nil {
		return "", "", errors.New("could not parse release metadata")
	}
	if ver, err := semver.ParseTolerant(rel.TagName); err == nil {
		log = log.WithField("version", ver.String())
		if globals.IsSnapshotVersion(ver) {
			log.Info("latest release is a pre-release")
		}
	} else if rel.TagName != "" {
		log.WithField("tag", rel.TagName).Debug("release tag is not a semantic version")
	}
	log.WithField("tarball", rel.TarballURL).Debug("found release")
	return strings.TrimSpace(rel.TarballURL), rel.TagName, nil
}

// download streams a tarball into a fresh scratch bundle. The scratch
// directory is removed again on any failure.
func (f *Fetcher) download(ctx context.Context, target, origin string) (*bundle.Bundle, error) {
	log := Log.WithField("action", "download").WithField("url", target)
	log.Debug("downloading archive")
	res, err := f.rest.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(target)
	if err != nil {
		return nil, errors.Wrapf(err, "could not download %s", target)
	}
	body := res.RawBody()
	if body == nil {
		return nil, errors.Errorf("could not download %s: empty response", target)
	}
	defer body.Close()
	if res.StatusCode() != http.StatusOK {
		_, _ = io.Copy(io.Discard, body)
		return nil, errors.Errorf("could not download %s, got code %d", target, res.StatusCode())
	}

	b, err := bundle.NewTemp(origin)
	if err != nil {
		return nil, err
	}
	files, err := Extract(body, b.Dir)
	if err != nil {
		b.Close()
		return nil, errors.Wrapf(err, "could not extract %s", target)
	}
	log.WithField("files", files).WithField("dir", b.Dir).Debug("extracted archive")
	return b, nil
}

func (f *Fetcher) initREST() error {
	log := Log.WithField("action", "initREST")
	timeout := 30 * time.Second
	if f.Config.Timeout != "" {
		d, err := time.ParseDuration(f.Config.Timeout)
		if err != nil {
			return errors.Wrap(err, "cannot parse timeout")
		}
		timeout = d
	}
	if f.Config.Retries < 0 {
		return errors.New("retries cannot be negative")
	}
	for _, u := range []string{f.Config.APIURL, f.Config.ArchiveURL} {
		parsed, err := url.Parse(u)
		if err != nil || parsed.Host == "" {
			return errors.Errorf("invalid URL: %q", u)
		}
		if parsed.Scheme != "https" {
			log.WithField("url", u).Warn("You should really not use unencrypted connection")
		}
	}

	rest := resty.New().
		SetTimeout(timeout).
		SetRetryCount(f.Config.Retries).
		SetLogger(io.Discard).
		SetHeader("User-Agent", globals.UserAgentString()).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))
	if f.Config.Insecure {
		rest.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	if f.Config.Debug {
		rest.SetDebug(true).
			SetLogger(os.Stderr)
	}
	f.rest = rest
	return nil
}
