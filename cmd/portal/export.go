package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/taxilian/portal/internal/db"
	"github.com/taxilian/portal/internal/model"
	"gopkg.in/yaml.v3"
)

var (
	flagExportOutput string
	flagExportJSON   bool
)

type projectDoc struct {
	ID   int64  `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

type accountDoc struct {
	ID   int64  `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

type contactDoc struct {
	ID        int64     `json:"id" yaml:"id"`
	AccountID int64     `json:"account_id" yaml:"account_id"`
	Name      string    `json:"name" yaml:"name"`
	Emails    []string  `json:"emails" yaml:"emails"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

type linkDoc struct {
	ID        int64  `json:"id" yaml:"id"`
	ProjectID int64  `json:"project_id" yaml:"project_id"`
	ContactID int64  `json:"client_contact_id" yaml:"client_contact_id"`
	Main      bool   `json:"main" yaml:"main"`
	Role      string `json:"role" yaml:"role"`
}

type exportDoc struct {
	Projects []projectDoc `json:"projects" yaml:"projects"`
	Accounts []accountDoc `json:"accounts" yaml:"accounts"`
	Contacts []contactDoc `json:"contacts" yaml:"contacts"`
	Links    []linkDoc    `json:"links" yaml:"links"`
}

func toContactDoc(c model.Contact) contactDoc {
	return contactDoc{ID: c.ID, AccountID: c.AccountID, Name: c.Name, Emails: c.Emails, CreatedAt: c.CreatedAt.UTC()}
}

func toLinkDoc(l model.ContactProject) linkDoc {
	return linkDoc{ID: l.ID, ProjectID: l.ProjectID, ContactID: l.ContactID, Main: l.Main, Role: l.Role}
}

func buildExport(database *db.DB) (*exportDoc, error) {
	projects, err := database.ListProjects()
	if err != nil {
		return nil, err
	}
	accounts, err := database.ListAccounts()
	if err != nil {
		return nil, err
	}
	contacts, err := database.ListContacts(db.ContactFilter{})
	if err != nil {
		return nil, err
	}
	links, err := database.ListContactProjects(db.LinkFilter{})
	if err != nil {
		return nil, err
	}

	doc := &exportDoc{
		Projects: make([]projectDoc, 0, len(projects)),
		Accounts: make([]accountDoc, 0, len(accounts)),
		Contacts: make([]contactDoc, 0, len(contacts)),
		Links:    make([]linkDoc, 0, len(links)),
	}
	for _, p := range projects {
		doc.Projects = append(doc.Projects, projectDoc{ID: p.ID, Name: p.Name})
	}
	for _, a := range accounts {
		doc.Accounts = append(doc.Accounts, accountDoc{ID: a.ID, Name: a.Name})
	}
	for _, c := range contacts {
		doc.Contacts = append(doc.Contacts, toContactDoc(c))
	}
	for _, l := range links {
		doc.Links = append(doc.Links, toLinkDoc(l))
	}
	return doc, nil
}

// writeExport writes every record as YAML, or JSON when asJSON is set.
func writeExport(w io.Writer, database *db.DB, asJSON bool) error {
	doc, err := buildExport(database)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
		return nil
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return enc.Close()
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export projects, accounts, contacts and links",
	Long: `Export every record to stdout or a file.

YAML by default; use --json for JSON.

Examples:
  portal export
  portal export --json -o contacts.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		database, _, err := openDB()
		if err != nil {
			return err
		}
		defer func() { _ = database.Close() }()

		var w io.Writer = cmd.OutOrStdout()
		if flagExportOutput != "" {
			f, err := os.Create(flagExportOutput)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer func() { _ = f.Close() }()
			w = f
		}

		if err := writeExport(w, database, flagExportJSON); err != nil {
			return err
		}
		if flagExportOutput != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "Exported to %s\n", flagExportOutput)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&flagExportOutput, "output", "o", "", "Write to file instead of stdout")
	exportCmd.Flags().BoolVar(&flagExportJSON, "json", false, "Export as JSON")
	rootCmd.AddCommand(exportCmd)
}
