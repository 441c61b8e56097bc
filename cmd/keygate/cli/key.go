package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/keygatehq/keygate/internal/model"
	"github.com/keygatehq/keygate/internal/service"
)

func newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage API keys",
		Long:  "Issue, list, and cancel API keys.",
	}

	cmd.AddCommand(newKeyIssueCmd())
	cmd.AddCommand(newKeyListCmd())
	cmd.AddCommand(newKeyCancelCmd())

	return cmd
}

// ---------- key issue ----------

func newKeyIssueCmd() *cobra.Command {
	var (
		ownerID   int64
		expiresIn string
		notes     string
	)

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a fresh key batch for an account",
		Long:  "Mint one key per configured environment and key type. Existing keys stay valid.",
		Example: `  keygate key issue --owner 3
  keygate key issue --owner 3 --expires-in 720h --notes "rotation 2026-09"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyIssue(cmd.Context(), ownerID, expiresIn, notes)
		},
	}

	cmd.Flags().Int64Var(&ownerID, "owner", 0, "Owner account ID (required)")
	cmd.Flags().StringVar(&expiresIn, "expires-in", "", "Expiry as a duration from now (e.g. 720h); empty for no expiry")
	cmd.Flags().StringVar(&notes, "notes", "", "Free-form notes stamped on each key")
	cmd.MarkFlagRequired("owner")

	return cmd
}

func runKeyIssue(ctx context.Context, ownerID int64, expiresIn, notes string) error {
	cfg := settings()
	st, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	if _, err := st.GetAccount(ctx, ownerID); err != nil {
		return fmt.Errorf("account %d: %w", ownerID, err)
	}

	var mutator service.RecordMutator
	if expiresIn != "" || notes != "" {
		var expiresAt *time.Time
		if expiresIn != "" {
			d, err := time.ParseDuration(expiresIn)
			if err != nil {
				return fmt.Errorf("invalid --expires-in: %w", err)
			}
			t := time.Now().UTC().Add(d)
			expiresAt = &t
		}
		mutator = service.RecordMutatorFunc(func(k *model.APIKey) error {
			k.ExpiresAt = expiresAt
			k.Notes = notes
			return nil
		})
	}

	issuer := service.NewIssuer(st, service.IssuerConfig{
		Environments: cfg.Keys.Environments,
		KeyTypes:     cfg.Keys.Types,
		SizeBytes:    cfg.Keys.SizeBytes,
	}, nil, mutator)

	keys, err := issuer.IssueFor(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("issue keys: %w", err)
	}

	fmt.Printf("Issued %d keys for account %d (tokens are shown once):\n", len(keys), ownerID)
	for _, k := range keys {
		fmt.Printf("  %-8s %-8s %s\n", k.Environment, k.KeyType, k.Token)
	}
	return nil
}

// ---------- key list ----------

func newKeyListCmd() *cobra.Command {
	var (
		ownerID    int64
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List keys (tokens are never shown)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyList(cmd.Context(), ownerID, jsonOutput)
		},
	}

	cmd.Flags().Int64Var(&ownerID, "owner", 0, "Only keys belonging to this account ID")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runKeyList(ctx context.Context, ownerID int64, jsonOutput bool) error {
	st, err := openStore(ctx, settings())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	var keys []model.APIKey
	if ownerID != 0 {
		keys, err = st.ListKeysByOwner(ctx, ownerID)
	} else {
		keys, err = st.ListKeys(ctx)
	}
	if err != nil {
		return fmt.Errorf("list keys: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(keys)
	}

	if len(keys) == 0 {
		fmt.Println("No keys found.")
		return nil
	}

	fmt.Printf("%-6s %-8s %-10s %-8s %-10s %-10s\n", "ID", "OWNER", "ENV", "TYPE", "EXPIRES", "CANCELLED")
	fmt.Printf("%-6s %-8s %-10s %-8s %-10s %-10s\n", "--", "-----", "---", "----", "-------", "---------")
	for _, k := range keys {
		expires := "-"
		if k.ExpiresAt != nil {
			expires = k.ExpiresAt.Format("2006-01-02")
		}
		cancelled := "-"
		if k.Cancelled() {
			cancelled = k.CancelledAt.Format("2006-01-02")
		}
		fmt.Printf("%-6d %-8d %-10s %-8s %-10s %-10s\n",
			k.ID, k.OwnerID, k.Environment, k.KeyType, expires, cancelled)
	}
	return nil
}

// ---------- key cancel ----------

func newKeyCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <key-id>",
		Short: "Cancel a key permanently",
		Long:  "Revoke a key. Cancellation cannot be undone; issue a new batch instead.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid key ID: %q", args[0])
			}

			st, err := openStore(cmd.Context(), settings())
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			if err := st.CancelKey(cmd.Context(), id); err != nil {
				return fmt.Errorf("cancel key %d: %w", id, err)
			}
			fmt.Printf("Cancelled key %d\n", id)
			return nil
		},
	}
}
