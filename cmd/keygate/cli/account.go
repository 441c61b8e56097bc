package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/keygatehq/keygate/internal/event"
	"github.com/keygatehq/keygate/internal/model"
	"github.com/keygatehq/keygate/internal/service"
)

func newAccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage owner accounts",
		Long:  "Register, list, lock, and unlock the accounts that own API keys.",
	}

	cmd.AddCommand(newAccountRegisterCmd())
	cmd.AddCommand(newAccountListCmd())
	cmd.AddCommand(newAccountLockCmd())
	cmd.AddCommand(newAccountUnlockCmd())

	return cmd
}

// ---------- account register ----------

func newAccountRegisterCmd() *cobra.Command {
	var (
		username    string
		displayName string
		firstName   string
		lastName    string
		email       string
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new account and issue its key batch",
		Example: `  keygate account register --username alice --email alice@example.com
  keygate account register --username svc-billing --display-name "Billing service"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAccountRegister(cmd.Context(), model.Account{
				UserName:    username,
				DisplayName: displayName,
				FirstName:   firstName,
				LastName:    lastName,
				Email:       email,
			})
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Unique username (required)")
	cmd.Flags().StringVar(&displayName, "display-name", "", "Display name")
	cmd.Flags().StringVar(&firstName, "first-name", "", "First name")
	cmd.Flags().StringVar(&lastName, "last-name", "", "Last name")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.MarkFlagRequired("username")

	return cmd
}

func runAccountRegister(ctx context.Context, acc model.Account) error {
	cfg := settings()
	st, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	issuer := service.NewIssuer(st, service.IssuerConfig{
		Environments: cfg.Keys.Environments,
		KeyTypes:     cfg.Keys.Types,
		SizeBytes:    cfg.Keys.SizeBytes,
	}, nil, nil)
	bus := event.NewBus()
	issuer.Subscribe(bus)

	if err := st.CreateAccount(ctx, &acc); err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	if err := bus.PublishAccountRegistered(ctx, event.AccountRegistered{
		AccountID: acc.ID,
		UserName:  acc.UserName,
	}); err != nil {
		return fmt.Errorf("issue keys: %w", err)
	}

	keys, err := st.ListKeysByOwner(ctx, acc.ID)
	if err != nil {
		return fmt.Errorf("load issued keys: %w", err)
	}

	fmt.Printf("Registered account %q (id %d)\n\n", acc.UserName, acc.ID)
	fmt.Println("Issued keys (tokens are shown once, store them now):")
	for _, k := range keys {
		fmt.Printf("  %-8s %-8s %s\n", k.Environment, k.KeyType, k.Token)
	}
	return nil
}

// ---------- account list ----------

func newAccountListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAccountList(cmd.Context(), jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runAccountList(ctx context.Context, jsonOutput bool) error {
	st, err := openStore(ctx, settings())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	accounts, err := st.ListAccounts(ctx)
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(accounts)
	}

	if len(accounts) == 0 {
		fmt.Println("No accounts registered. Use 'keygate account register' to create one.")
		return nil
	}

	fmt.Printf("%-6s %-20s %-24s %-8s\n", "ID", "USERNAME", "EMAIL", "LOCKED")
	fmt.Printf("%-6s %-20s %-24s %-8s\n", "--", "--------", "-----", "------")
	for _, a := range accounts {
		locked := "no"
		if a.Locked() {
			locked = "yes"
		}
		fmt.Printf("%-6d %-20s %-24s %-8s\n", a.ID, a.UserName, a.Email, locked)
	}
	return nil
}

// ---------- account lock / unlock ----------

func newAccountLockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lock <account-id>",
		Short: "Lock an account, blocking all of its keys",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAccountSetLock(cmd.Context(), args[0], true)
		},
	}
}

func newAccountUnlockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlock <account-id>",
		Short: "Unlock an account; its keys become valid again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAccountSetLock(cmd.Context(), args[0], false)
		},
	}
}

func runAccountSetLock(ctx context.Context, idArg string, lock bool) error {
	id, err := strconv.ParseInt(idArg, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid account ID: %q", idArg)
	}

	st, err := openStore(ctx, settings())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	if lock {
		err = st.LockAccount(ctx, id)
	} else {
		err = st.UnlockAccount(ctx, id)
	}
	if err != nil {
		return err
	}

	if lock {
		fmt.Printf("Locked account %d\n", id)
	} else {
		fmt.Printf("Unlocked account %d\n", id)
	}
	return nil
}
