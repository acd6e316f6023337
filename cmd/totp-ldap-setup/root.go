package main

import (
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/aakso/totp-ldap-setup/internal/config"
	"github.com/aakso/totp-ldap-setup/internal/credential"
	"github.com/aakso/totp-ldap-setup/internal/fetch"
	"github.com/aakso/totp-ldap-setup/internal/globals"
	"github.com/aakso/totp-ldap-setup/internal/logging"
	"github.com/aakso/totp-ldap-setup/internal/render"
	"github.com/aakso/totp-ldap-setup/internal/setup"
	"github.com/aakso/totp-ldap-setup/internal/ui"
)

const envPrefix = "TOTP_LDAP_SETUP_"

var cfgFile string
var defaultCfgLoc string = path.Join(globals.ConfDir(), "config.yaml")
var logLevel string

// Flag values. Only flags set on the command line or through the
// environment override the config file.
var (
	outputDir   string
	offline     bool
	sourceDir   string
	release     string
	repo        string
	branch      string
	timeout     string
	retries     int
	length      int
	askPassword bool
	hashScheme  string
	nativeHash  bool
	insecure    bool
	debug       bool
	quiet       bool
)

var RootCmd = &cobra.Command{
	Use:   "totp-ldap-setup [base-dn]",
	Short: "Prepare the OpenLDAP TOTP schema, ACLs and service account",
	Long: `Download the TOTP schema templates, customize them for a base DN and
write them together with a generated service account credential.

Without a base DN argument the DN is asked interactively.`,
	Example:           "  totp-ldap-setup dc=example,dc=org\n  totp-ldap-setup -o /tmp/ldif --offline ou=corp,o=acme",
	Args:              cobra.MaximumNArgs(1),
	ValidArgsFunction: cobra.NoFileCompletions,
	SilenceErrors:     true,
	SilenceUsage:      true,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := buildOptions(cmd, args)
		if err != nil {
			return err
		}
		rep, err := setup.Run(cmd.Context(), opts)
		if err != nil {
			return errors.Wrap(err, setup.Describe(err))
		}
		rep.Print(opts.Out)
		return nil
	},
}

func rootInit() {
	if cfgFile != "" {
		err := config.LoadConfig(cfgFile)
		if os.IsNotExist(errors.Cause(err)) && cfgFile == defaultCfgLoc {
			err = nil
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	if err := logging.Setup(logLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	for _, section := range config.UnknownSections() {
		ui.New().Warn("ignoring unknown section %q in %s", section, cfgFile)
	}
}

// fromEnv reports whether the flag was given on the command line or via
// its environment variable.
func fromEnv(cmd *cobra.Command, flag string) bool {
	if cmd.Flags().Changed(flag) {
		return true
	}
	_, ok := os.LookupEnv(envName(flag))
	return ok
}

func envName(flag string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))
}

func envBool(flag string) bool {
	val, err := strconv.ParseBool(os.Getenv(envName(flag)))
	return err == nil && val
}

func buildOptions(cmd *cobra.Command, args []string) (setup.Options, error) {
	fetchConf, err := config.Section[fetch.Config]("fetch")
	if err != nil {
		return setup.Options{}, err
	}
	renderConf, err := config.Section[render.Config]("render")
	if err != nil {
		return setup.Options{}, err
	}
	credConf, err := config.Section[credential.Config]("credential")
	if err != nil {
		return setup.Options{}, err
	}

	if fromEnv(cmd, "output") {
		renderConf.OutputDir = outputDir
	}
	if fromEnv(cmd, "release") {
		fetchConf.Release = release
	}
	if fromEnv(cmd, "repo") {
		owner, name, ok := strings.Cut(repo, "/")
		if !ok || owner == "" || name == "" {
			return setup.Options{}, errors.Errorf("invalid repository %q, expected owner/name", repo)
		}
		fetchConf.Owner, fetchConf.Repo = owner, name
	}
	if fromEnv(cmd, "branch") {
		fetchConf.Branch = branch
	}
	if fromEnv(cmd, "timeout") {
		fetchConf.Timeout = timeout
	}
	if fromEnv(cmd, "retries") {
		fetchConf.Retries = retries
	}
	if fromEnv(cmd, "insecure") {
		fetchConf.Insecure = insecure
	}
	if fromEnv(cmd, "debug") {
		fetchConf.Debug = debug
	}
	if fromEnv(cmd, "length") {
		credConf.Length = length
	}
	if credConf.Length < 1 {
		return setup.Options{}, errors.Errorf("invalid password length: %d", credConf.Length)
	}
	if fromEnv(cmd, "hash-scheme") {
		credConf.HashScheme = hashScheme
	}
	if fromEnv(cmd, "native-hash") {
		credConf.NativeHash = nativeHash
	}
	if offline && sourceDir != "" {
		return setup.Options{}, errors.New("--offline and --source are mutually exclusive")
	}

	out := ui.New()
	out.Quiet = quiet
	return setup.Options{
		Args:        args,
		Offline:     offline,
		Source:      sourceDir,
		Fetch:       fetchConf,
		Render:      renderConf,
		Credential:  credConf,
		AskPassword: askPassword,
		Out:         out,
	}, nil
}

func noCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func init() {
	cobra.OnInitialize(rootInit)
	RootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		defaultCfgLoc,
		"config file",
	)

	logLevel = os.Getenv(envName("loglevel"))
	RootCmd.PersistentFlags().StringVar(
		&logLevel,
		"loglevel",
		logLevel,
		"Set logging level, overrides the config file ($"+envName("loglevel")+")",
	)
	_ = RootCmd.RegisterFlagCompletionFunc("loglevel", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return logging.GetAvailableLevelNames(), cobra.ShellCompDirectiveNoFileComp
	})

	defOutput := render.Defaults.OutputDir
	if s := os.Getenv(envName("output")); s != "" {
		defOutput = s
	}
	RootCmd.Flags().StringVarP(
		&outputDir,
		"output",
		"o",
		defOutput,
		"Directory for the generated files ($"+envName("output")+")",
	)
	_ = RootCmd.MarkFlagDirname("output")

	RootCmd.Flags().BoolVar(
		&offline,
		"offline",
		envBool("offline"),
		"Use the templates built into the binary instead of downloading ($"+envName("offline")+")",
	)

	RootCmd.Flags().StringVar(
		&sourceDir,
		"source",
		os.Getenv(envName("source")),
		"Use templates from a local directory instead of downloading ($"+envName("source")+")",
	)
	_ = RootCmd.MarkFlagDirname("source")

	RootCmd.Flags().StringVar(
		&release,
		"release",
		os.Getenv(envName("release")),
		"Download a specific release tag instead of the latest ($"+envName("release")+")",
	)
	_ = RootCmd.RegisterFlagCompletionFunc("release", noCompletion)

	defRepo := fetch.Defaults.Owner + "/" + fetch.Defaults.Repo
	if s := os.Getenv(envName("repo")); s != "" {
		defRepo = s
	}
	RootCmd.Flags().StringVar(
		&repo,
		"repo",
		defRepo,
		"Upstream repository as owner/name ($"+envName("repo")+")",
	)
	_ = RootCmd.RegisterFlagCompletionFunc("repo", noCompletion)

	defBranch := fetch.Defaults.Branch
	if s := os.Getenv(envName("branch")); s != "" {
		defBranch = s
	}
	RootCmd.Flags().StringVar(
		&branch,
		"branch",
		defBranch,
		"Branch downloaded when no release is available ($"+envName("branch")+")",
	)
	_ = RootCmd.RegisterFlagCompletionFunc("branch", noCompletion)

	defTimeout := fetch.Defaults.Timeout
	if s := os.Getenv(envName("timeout")); s != "" {
		defTimeout = s
	}
	RootCmd.Flags().StringVar(
		&timeout,
		"timeout",
		defTimeout,
		"Download timeout. Example '10s' ($"+envName("timeout")+")",
	)
	_ = RootCmd.RegisterFlagCompletionFunc("timeout", noCompletion)

	defRetries := fetch.Defaults.Retries
	if s := os.Getenv(envName("retries")); s != "" {
		defRetries, _ = strconv.Atoi(s)
	}
	RootCmd.Flags().IntVar(
		&retries,
		"retries",
		defRetries,
		"Retries per download attempt ($"+envName("retries")+")",
	)
	_ = RootCmd.RegisterFlagCompletionFunc("retries", noCompletion)

	RootCmd.Flags().BoolVar(
		&insecure,
		"insecure",
		envBool("insecure"),
		"Disable TLS validation for downloads (not recommended) ($"+envName("insecure")+")",
	)

	RootCmd.Flags().BoolVar(
		&debug,
		"debug",
		envBool("debug"),
		"Enable request level debugging ($"+envName("debug")+")",
	)

	defLength := credential.Defaults.Length
	if s := os.Getenv(envName("length")); s != "" {
		defLength, _ = strconv.Atoi(s)
	}
	RootCmd.Flags().IntVar(
		&length,
		"length",
		defLength,
		"Length of the generated service account password ($"+envName("length")+")",
	)
	_ = RootCmd.RegisterFlagCompletionFunc("length", noCompletion)

	RootCmd.Flags().BoolVar(
		&askPassword,
		"ask-password",
		envBool("ask-password"),
		"Ask for the service account password instead of generating one ($"+envName("ask-password")+")",
	)

	defScheme := credential.Defaults.HashScheme
	if s := os.Getenv(envName("hash-scheme")); s != "" {
		defScheme = s
	}
	RootCmd.Flags().StringVar(
		&hashScheme,
		"hash-scheme",
		defScheme,
		"Password scheme for slappasswd ($"+envName("hash-scheme")+")",
	)
	_ = RootCmd.RegisterFlagCompletionFunc("hash-scheme", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{credential.SchemeSSHA, credential.SchemeArgon2}, cobra.ShellCompDirectiveNoFileComp
	})

	RootCmd.Flags().BoolVar(
		&nativeHash,
		"native-hash",
		envBool("native-hash"),
		"Hash in-process when slappasswd is missing instead of writing plaintext ($"+envName("native-hash")+")",
	)

	RootCmd.PersistentFlags().BoolVarP(
		&quiet,
		"quiet",
		"q",
		envBool("quiet"),
		"Only print warnings and errors ($"+envName("quiet")+")",
	)
}
