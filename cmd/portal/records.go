package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/taxilian/portal/internal/db"
	"github.com/taxilian/portal/internal/format"
	"github.com/taxilian/portal/internal/model"
	"github.com/taxilian/portal/internal/provision"
)

var (
	flagContactsAccount int64
	flagContactsProject int64
)

func parseID(s, what string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", what, s)
	}
	return id, nil
}

// withDB opens the database, runs fn and maps provisioning error kinds
// onto exit codes.
func withDB(fn func(database *db.DB) error) error {
	database, _, err := openDB()
	if err != nil {
		return err
	}
	defer func() { _ = database.Close() }()

	if err := fn(database); err != nil {
		if kind := provision.KindOf(err); kind == provision.KindNotFound || kind == provision.KindValidation {
			return &exitError{code: provision.ExitCode(err), err: err}
		}
		return err
	}
	return nil
}

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
}

var projectAddCmd = &cobra.Command{
	Use:   "add <id> <name>",
	Short: "Create a project with a given id",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "project")
		if err != nil {
			return err
		}
		return withDB(func(database *db.DB) error {
			p := &model.Project{ID: id, Name: args[1]}
			if err := database.CreateProject(p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created project %d (%s)\n", p.ID, p.Name)
			return nil
		})
	},
}

var projectShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a project and its contacts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "project")
		if err != nil {
			return err
		}
		return withDB(func(database *db.DB) error {
			return showProject(cmd.OutOrStdout(), database, id)
		})
	},
}

func showProject(w io.Writer, database *db.DB, id int64) error {
	p, err := database.FindProject(id)
	if err != nil {
		return err
	}
	links, err := database.ListContactProjects(db.LinkFilter{ProjectID: id})
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Project %d: %s\n", p.ID, p.Name)
	fmt.Fprintf(w, "Created: %s\n", p.CreatedAt.Format("2006-01-02 15:04"))
	if len(links) == 0 {
		fmt.Fprintln(w, "\nNo contacts")
		return nil
	}
	fmt.Fprintf(w, "\n%-8s %-24s %-6s %s\n", "CONTACT", "NAME", "MAIN", "ROLE")
	for _, l := range links {
		c, err := database.GetContact(l.ContactID)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%-8d %-24s %-6s %s\n", c.ID, format.Truncate(c.Name, 24), format.MainDisplay(l.Main), format.RoleDisplay(l.Role))
	}
	return nil
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(database *db.DB) error {
			projects, err := database.ListProjects()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(projects) == 0 {
				fmt.Fprintln(w, "No projects")
				return nil
			}
			fmt.Fprintf(w, "%-10s %s\n", "ID", "NAME")
			for _, p := range projects {
				fmt.Fprintf(w, "%-10d %s\n", p.ID, p.Name)
			}
			return nil
		})
	},
}

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage client accounts",
}

var accountAddCmd = &cobra.Command{
	Use:   "add <id> <name>",
	Short: "Create a client account with a given id",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "account")
		if err != nil {
			return err
		}
		return withDB(func(database *db.DB) error {
			a := &model.Account{ID: id, Name: args[1]}
			if err := database.CreateAccount(a); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created account %d (%s)\n", a.ID, a.Name)
			return nil
		})
	},
}

var accountShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a client account and its contacts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "account")
		if err != nil {
			return err
		}
		return withDB(func(database *db.DB) error {
			a, err := database.FindAccount(id)
			if err != nil {
				return err
			}
			contacts, err := database.ListContacts(db.ContactFilter{AccountID: id})
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Account %d: %s\n", a.ID, a.Name)
			fmt.Fprintf(w, "Contacts: %d\n", len(contacts))
			if len(contacts) > 0 {
				fmt.Fprintln(w)
				printContactsTable(w, contacts)
			}
			return nil
		})
	},
}

var accountListCmd = &cobra.Command{
	Use:   "list",
	Short: "List client accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(database *db.DB) error {
			accounts, err := database.ListAccounts()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(accounts) == 0 {
				fmt.Fprintln(w, "No accounts")
				return nil
			}
			fmt.Fprintf(w, "%-10s %s\n", "ID", "NAME")
			for _, a := range accounts {
				fmt.Fprintf(w, "%-10d %s\n", a.ID, a.Name)
			}
			return nil
		})
	},
}

var contactsCmd = &cobra.Command{
	Use:   "contacts",
	Short: "List client contacts",
	Long: `List client contacts, optionally narrowed to an account or to the
contacts linked to a project.

Examples:
  portal contacts
  portal contacts --account 1455
  portal contacts --project 367316`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(database *db.DB) error {
			contacts, err := database.ListContacts(db.ContactFilter{
				AccountID: flagContactsAccount,
				ProjectID: flagContactsProject,
			})
			if err != nil {
				return err
			}
			printContactsTable(cmd.OutOrStdout(), contacts)
			return nil
		})
	},
}

func printContactsTable(w io.Writer, contacts []model.Contact) {
	if len(contacts) == 0 {
		fmt.Fprintln(w, "No contacts")
		return
	}
	fmt.Fprintf(w, "%-8s %-8s %-24s %s\n", "ID", "ACCOUNT", "NAME", "EMAILS")
	for _, c := range contacts {
		fmt.Fprintf(w, "%-8d %-8d %-24s %s\n", c.ID, c.AccountID, format.Truncate(c.Name, 24), format.Emails(c))
	}
}

func init() {
	contactsCmd.Flags().Int64Var(&flagContactsAccount, "account", 0, "Only contacts of this account")
	contactsCmd.Flags().Int64Var(&flagContactsProject, "project", 0, "Only contacts linked to this project")

	projectCmd.AddCommand(projectAddCmd, projectShowCmd, projectListCmd)
	accountCmd.AddCommand(accountAddCmd, accountShowCmd, accountListCmd)
	rootCmd.AddCommand(projectCmd)
	rootCmd.AddCommand(accountCmd)
	rootCmd.AddCommand(contactsCmd)
}
