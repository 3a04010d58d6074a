package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/pdmq/internal/config"
	"github.com/tonimelisma/pdmq/internal/identity"
	"github.com/tonimelisma/pdmq/internal/idp"
	"github.com/tonimelisma/pdmq/internal/session"
)

func newLoginCmd() *cobra.Command {
	var deviceCode bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and cache the account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogin(cmd, deviceCode)
		},
	}

	cmd.Flags().BoolVar(&deviceCode, "device-code", false, "sign in with a device code instead of a browser")
	cmd.Flags().StringP("shortname", "s", "", "user short name (default: OS login name)")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove the cached account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogout(cmd, all)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "delete the whole token cache")
	cmd.Flags().StringP("shortname", "s", "", "user short name (default: OS login name)")

	return cmd
}

func newWhoamiCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Display the resolved principal and cached accounts",
		RunE:  runWhoami,
	}

	cmd.Flags().StringP("shortname", "s", "", "user short name (default: OS login name)")

	return cmd
}

func runLogin(cmd *cobra.Command, deviceCode bool) error {
	cc := mustCLIContext(cmd.Context())
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	ctx = shutdownContext(ctx, cc.Logger)

	if deviceCode {
		cc.Cfg.Auth.Flow = config.FlowDeviceCode
	}

	orch := cc.Orchestrator()

	id, err := orch.Principal(cc.Cfg.ShortName)
	if err != nil {
		return err
	}

	sess, err := orch.Session(ctx)
	if err != nil {
		return err
	}

	cc.Logger.Info("login started", "principal", id.PrincipalName, "flow", cc.Cfg.Auth.Flow)

	tok, err := sess.Manager.Login(ctx, id)
	if errors.Is(err, session.ErrNoToken) {
		return fmt.Errorf("sign-in returned no token for %s", id.ShortName)
	}

	if err != nil {
		return err
	}

	cc.Logger.Info("login successful", "principal", id.PrincipalName)
	cc.Statusf("Signed in as %s.\n", tok.Account.Username)

	return nil
}

func runLogout(cmd *cobra.Command, all bool) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()
	orch := cc.Orchestrator()

	sess, err := orch.Session(ctx)
	if err != nil {
		return err
	}

	if all {
		if err := sess.Manager.PurgeCache(); err != nil {
			return err
		}

		cc.Logger.Info("token cache purged", "path", sess.Store.Location())
		cc.Statusf("Token cache deleted.\n")

		return nil
	}

	id, err := orch.Principal(cc.Cfg.ShortName)
	if err != nil {
		return err
	}

	removed, err := sess.Manager.Logout(ctx, id)
	if err != nil {
		return err
	}

	if removed == 0 {
		cc.Statusf("No cached account for %s.\n", id.PrincipalName)
		return nil
	}

	cc.Logger.Info("logout successful", "principal", id.PrincipalName, "removed", removed)
	cc.Statusf("Logged out %s.\n", id.PrincipalName)

	return nil
}

// whoamiOutput is the JSON schema for `whoami --json`.
type whoamiOutput struct {
	ShortName     string          `json:"short_name"`
	PrincipalName string          `json:"principal_name"`
	Cache         whoamiCache     `json:"cache"`
	Accounts      []whoamiAccount `json:"accounts"`
}

type whoamiCache struct {
	Location  string `json:"location"`
	Kind      string `json:"kind"`
	Encrypted bool   `json:"encrypted"`
}

type whoamiAccount struct {
	Username string `json:"username"`
	Current  bool   `json:"current"`
}

func runWhoami(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()
	orch := cc.Orchestrator()

	id, err := orch.Principal(cc.Cfg.ShortName)
	if err != nil {
		return err
	}

	sess, err := orch.Session(ctx)
	if err != nil {
		return err
	}

	accounts, err := sess.Manager.Accounts(ctx)
	if err != nil {
		return fmt.Errorf("listing cached accounts: %w", err)
	}

	out := buildWhoami(id, whoamiCache{
		Location:  sess.Store.Location(),
		Kind:      sess.Store.Kind().String(),
		Encrypted: sess.Store.Encrypted(),
	}, accounts)

	if cc.Flags.JSON {
		enc := json.NewEncoder(cc.Out)
		enc.SetIndent("", "  ")

		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("encoding JSON output: %w", err)
		}

		return nil
	}

	printWhoamiText(cc.Out, out)

	return nil
}

func buildWhoami(id identity.Identity, cache whoamiCache, accounts []idp.Account) whoamiOutput {
	out := whoamiOutput{
		ShortName:     id.ShortName,
		PrincipalName: id.PrincipalName,
		Cache:         cache,
		Accounts:      make([]whoamiAccount, 0, len(accounts)),
	}

	for _, a := range accounts {
		out.Accounts = append(out.Accounts, whoamiAccount{Username: a.Username, Current: id.Matches(a.Username)})
	}

	return out
}

func printWhoamiText(w io.Writer, out whoamiOutput) {
	fmt.Fprintf(w, "Principal: %s (%s)\n", out.PrincipalName, out.ShortName)
	fmt.Fprintf(w, "Cache:     %s (%s, encrypted: %t)\n", out.Cache.Location, out.Cache.Kind, out.Cache.Encrypted)

	if len(out.Accounts) == 0 {
		fmt.Fprintln(w, "\nNo cached accounts. Run 'pdmq login' to sign in.")
		return
	}

	fmt.Fprintln(w, "\nCached accounts:")

	for _, a := range out.Accounts {
		marker := " "
		if a.Current {
			marker = "*"
		}

		fmt.Fprintf(w, "  %s %s\n", marker, a.Username)
	}
}
