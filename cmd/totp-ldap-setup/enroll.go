package main

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/aakso/totp-ldap-setup/internal/config"
	"github.com/aakso/totp-ldap-setup/internal/enroll"
	"github.com/aakso/totp-ldap-setup/internal/ui"
)

var (
	enrollFile      string
	enrollQR        string
	enrollIssuer    string
	enrollAlgorithm string
	enrollDigits    int
	enrollPeriod    uint
	enrollScratch   int
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <user-dn>",
	Short: "Generate a TOTP secret and modify LDIF for a user entry",
	Long: `Generate a TOTP secret and scratch codes for an existing user entry.

The result is written as a modify LDIF readable by the owner only. Apply it
with ldapmodify and hand the printed otpauth:// URI (or the QR code) to the
user.`,
	Example:           "  totp-ldap-setup enroll uid=alice,ou=people,dc=example,dc=org --qr alice.png",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: cobra.NoFileCompletions,
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := config.Section[enroll.Config]("enroll")
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("issuer") {
			conf.Issuer = enrollIssuer
		}
		if cmd.Flags().Changed("algorithm") {
			conf.Algorithm = enrollAlgorithm
		}
		if cmd.Flags().Changed("digits") {
			conf.Digits = enrollDigits
		}
		if cmd.Flags().Changed("period") {
			conf.Period = enrollPeriod
		}
		if fromEnv(cmd, "scratch-codes") {
			conf.ScratchCodes = enrollScratch
		}

		e, err := enroll.New(args[0], conf, time.Now())
		if err != nil {
			return err
		}
		out := ui.New()
		out.Quiet = quiet

		path := enrollFile
		if path == "" {
			path = e.Account + "-totp.ldif"
		}
		if err := e.Write(path); err != nil {
			return errors.Wrap(err, "cannot write enrollment")
		}
		abs, _ := filepath.Abs(path)
		out.Success("%s written (mode 0600)", abs)
		if enrollQR != "" {
			if err := e.WriteQRFile(enrollQR, 256); err != nil {
				return err
			}
			out.Success("QR code written to %s", enrollQR)
		}

		out.Println("")
		out.Println("Provisioning URI for %s:", e.Account)
		out.Println("  %s", e.URL())
		if len(e.ScratchCodes) > 0 {
			out.Println("")
			out.Println("Scratch codes (single use):")
			for _, c := range e.ScratchCodes {
				out.Println("  %s", c)
			}
		}
		out.Println("")
		out.Println("Apply with:")
		out.Println("  ldapmodify -x -D \"<admin-dn>\" -W -f %s", path)
		out.Warn("%s contains the shared secret, delete it once applied", path)
		return nil
	},
}

func init() {
	enrollCmd.Flags().StringVarP(
		&enrollFile,
		"file",
		"f",
		os.Getenv(envName("enroll-file")),
		"Output LDIF, defaults to <account>-totp.ldif ($"+envName("enroll-file")+")",
	)
	_ = enrollCmd.MarkFlagFilename("file", "ldif")

	enrollCmd.Flags().StringVar(
		&enrollQR,
		"qr",
		"",
		"Also write the provisioning URI as a PNG QR code",
	)
	_ = enrollCmd.MarkFlagFilename("qr", "png")

	enrollCmd.Flags().StringVar(
		&enrollIssuer,
		"issuer",
		enroll.Defaults.Issuer,
		"Issuer shown by authenticator apps",
	)
	_ = enrollCmd.RegisterFlagCompletionFunc("issuer", noCompletion)

	enrollCmd.Flags().StringVar(
		&enrollAlgorithm,
		"algorithm",
		enroll.Defaults.Algorithm,
		"HMAC algorithm: SHA1, SHA256 or SHA512",
	)
	_ = enrollCmd.RegisterFlagCompletionFunc("algorithm", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"SHA1", "SHA256", "SHA512"}, cobra.ShellCompDirectiveNoFileComp
	})

	enrollCmd.Flags().IntVar(
		&enrollDigits,
		"digits",
		enroll.Defaults.Digits,
		"Code length: 6 or 8",
	)
	_ = enrollCmd.RegisterFlagCompletionFunc("digits", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"6", "8"}, cobra.ShellCompDirectiveNoFileComp
	})

	enrollCmd.Flags().UintVar(
		&enrollPeriod,
		"period",
		enroll.Defaults.Period,
		"Time step in seconds",
	)
	_ = enrollCmd.RegisterFlagCompletionFunc("period", noCompletion)

	defScratch := enroll.Defaults.ScratchCodes
	if s := os.Getenv(envName("scratch-codes")); s != "" {
		defScratch, _ = strconv.Atoi(s)
	}
	enrollCmd.Flags().IntVar(
		&enrollScratch,
		"scratch-codes",
		defScratch,
		"Number of single use recovery codes ($"+envName("scratch-codes")+")",
	)
	_ = enrollCmd.RegisterFlagCompletionFunc("scratch-codes", noCompletion)

	RootCmd.AddCommand(enrollCmd)
}
