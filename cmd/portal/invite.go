package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/taxilian/portal/internal/db"
	"github.com/taxilian/portal/internal/format"
	"github.com/taxilian/portal/internal/invite"
	"github.com/taxilian/portal/internal/model"
	"github.com/taxilian/portal/internal/provision"
)

var (
	flagInviteProject     int64
	flagInviteAccount     int64
	flagInviteDryRun      bool
	flagInviteStrictEmail bool
	flagInviteToken       bool
	flagInviteJSON        bool
)

type inviteOptions struct {
	provision.Request
	DryRun     bool
	IssueToken bool
	TokenBytes int
}

type inviteOutcome struct {
	Result *provision.Result
	Token  string // plain invite token, shown once
	DryRun bool
}

// resolveIDs fills zero project/account ids from config.
func resolveIDs(req *provision.Request, config *db.Config) {
	if req.ProjectID == 0 {
		req.ProjectID = config.DefaultProjectID
	}
	if req.AccountID == 0 {
		req.AccountID = config.DefaultAccountID
	}
}

// runInvite provisions one contact. Real runs happen in a single
// transaction; dry runs only read from the database.
func runInvite(database *db.DB, opts inviteOptions) (*inviteOutcome, error) {
	if opts.DryRun {
		res, err := provision.Preview(database, opts.Request)
		if err != nil {
			return nil, err
		}
		return &inviteOutcome{Result: res, DryRun: true}, nil
	}

	if !opts.IssueToken {
		res, err := provision.RunInTx(database, opts.Request)
		if err != nil {
			return nil, err
		}
		return &inviteOutcome{Result: res}, nil
	}

	// Hash before opening the transaction; bcrypt is slow.
	token, err := invite.NewToken(opts.TokenBytes)
	if err != nil {
		return nil, err
	}
	hash, err := invite.Hash(token)
	if err != nil {
		return nil, err
	}

	var res *provision.Result
	err = database.InTx(func(tx *db.Tx) error {
		res, err = provision.Run(tx, opts.Request)
		if err != nil {
			return err
		}
		return tx.CreateInvite(&model.Invite{ContactID: res.Contact.ID, TokenHash: hash})
	})
	if err != nil {
		return nil, err
	}
	return &inviteOutcome{Result: res, Token: token}, nil
}

type inviteJSON struct {
	DryRun  bool       `json:"dry_run,omitempty"`
	Contact contactDoc `json:"contact"`
	Link    linkDoc    `json:"link"`
	Token   string     `json:"token,omitempty"`
}

func printInviteOutcome(w io.Writer, out *inviteOutcome, asJSON bool) error {
	res := out.Result
	if asJSON {
		data, err := json.MarshalIndent(inviteJSON{
			DryRun:  out.DryRun,
			Contact: toContactDoc(*res.Contact),
			Link:    toLinkDoc(*res.Link),
			Token:   out.Token,
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	verb := "Created"
	if out.DryRun {
		verb = "Would create"
	}
	fmt.Fprintf(w, "%s contact %d %q <%s> on account %d (%s)\n",
		verb, res.Contact.ID, res.Contact.Name, format.Emails(*res.Contact), res.Account.ID, res.Account.Name)
	fmt.Fprintf(w, "Linked to project %d (%s): %s\n",
		res.Project.ID, res.Project.Name, format.LinkSummary(*res.Link))
	if out.Token != "" {
		fmt.Fprintf(w, "Invite token: %s\n", out.Token)
	}
	return nil
}

var inviteCmd = &cobra.Command{
	Use:   "invite <name> <email>",
	Short: "Create a client contact and link it to a project",
	Long: `Create a client contact with one email address under an account and
link it to a project as the project's main contact with an empty role.

The project and account must already exist. Ids come from --project and
--account, then PORTAL_PROJECT_ID / PORTAL_ACCOUNT_ID, then config.toml
(defaults 367316 and 1455). Running twice creates two contacts.

Exit codes: 3 project or account not found, 4 validation failed,
5 storage error.

Examples:
  portal invite "Jane Doe" jane@example.com
  portal invite "Jane Doe" jane@example.com --project 12 --account 3
  portal invite "Jane Doe" jane@example.com --dry-run
  portal invite "Jane Doe" jane@example.com --token --json`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, config, err := openDB()
		if err != nil {
			return err
		}
		defer func() { _ = database.Close() }()

		opts := inviteOptions{
			Request: provision.Request{
				ProjectID: flagInviteProject,
				AccountID: flagInviteAccount,
				Name:        args[0],
				Email:       args[1],
				StrictEmail: flagInviteStrictEmail,
			},
			DryRun:     flagInviteDryRun,
			IssueToken: flagInviteToken,
			TokenBytes: config.Invites.TokenBytes,
		}
		resolveIDs(&opts.Request, config)
		verbosef("provisioning %q <%s> on account %d, project %d", opts.Name, opts.Email, opts.AccountID, opts.ProjectID)

		out, err := runInvite(database, opts)
		if err != nil {
			verbosef("provisioning failed: %s", provision.KindOf(err))
			return &exitError{code: provision.ExitCode(err), err: err}
		}
		return printInviteOutcome(cmd.OutOrStdout(), out, flagInviteJSON)
	},
}

// errInvalidToken is returned when no open invite matches a token.
var errInvalidToken = errors.New("invalid or already used invite token")

// runVerifyToken finds the open invite for contactID that token unlocks
// and marks it accepted.
func runVerifyToken(database *db.DB, contactID int64, token string) (*model.Invite, error) {
	if _, err := database.GetContact(contactID); err != nil {
		return nil, err
	}
	invites, err := database.ListInvites(contactID)
	if err != nil {
		return nil, err
	}
	for i := range invites {
		inv := &invites[i]
		if inv.Accepted() || !invite.Verify(token, inv.TokenHash) {
			continue
		}
		now := time.Now()
		if err := database.AcceptInvite(inv.ID, now); err != nil {
			return nil, err
		}
		inv.AcceptedAt = &now
		return inv, nil
	}
	return nil, errInvalidToken
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage portal invite tokens",
}

var tokenVerifyCmd = &cobra.Command{
	Use:   "verify <contact-id> <token>",
	Short: "Check and redeem an invite token",
	Long: `Check a portal invite token issued by 'portal invite --token'.
A token can be redeemed once.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		contactID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid contact id %q: %w", args[0], err)
		}
		database, _, err := openDB()
		if err != nil {
			return err
		}
		defer func() { _ = database.Close() }()

		inv, err := runVerifyToken(database, contactID, args[1])
		if errors.Is(err, db.ErrNotFound) {
			return &exitError{code: provision.ExitNotFound, err: err}
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Invite %d for contact %d accepted\n", inv.ID, contactID)
		return nil
	},
}

func init() {
	inviteCmd.Flags().Int64Var(&flagInviteProject, "project", 0, "Project id (default from config)")
	inviteCmd.Flags().Int64Var(&flagInviteAccount, "account", 0, "Client account id (default from config)")
	inviteCmd.Flags().BoolVar(&flagInviteDryRun, "dry-run", false, "Show what would be created without writing")
	inviteCmd.Flags().BoolVar(&flagInviteStrictEmail, "strict-email", false, "Reject malformed email addresses")
	inviteCmd.Flags().BoolVar(&flagInviteToken, "token", false, "Also issue a portal invite token")
	inviteCmd.Flags().BoolVar(&flagInviteJSON, "json", false, "Print the result as JSON")

	tokenCmd.AddCommand(tokenVerifyCmd)
	rootCmd.AddCommand(inviteCmd)
	rootCmd.AddCommand(tokenCmd)
}
