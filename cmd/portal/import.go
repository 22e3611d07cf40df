package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/taxilian/portal/internal/db"
	"github.com/taxilian/portal/internal/provision"
	"gopkg.in/yaml.v3"
)

var flagImportDryRun bool

// importFile is the YAML batch format:
//
//	contacts:
//	  - name: Jane Doe
//	    email: jane@example.com
//	    project_id: 367316   # optional, defaults from config
//	    account_id: 1455     # optional
type importFile struct {
	Contacts []importEntry `yaml:"contacts"`
}

type importEntry struct {
	Name      string `yaml:"name"`
	Email     string `yaml:"email"`
	ProjectID int64  `yaml:"project_id"`
	AccountID int64  `yaml:"account_id"`
}

func parseImport(data []byte) (*importFile, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var file importFile
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("import file is empty")
		}
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(file.Contacts) == 0 {
		return nil, fmt.Errorf("no contacts found in import file")
	}
	return &file, nil
}

// runImport provisions each entry in its own transaction, stopping at the
// first failure. Results for entries before the failure are returned.
func runImport(database *db.DB, config *db.Config, file *importFile, dryRun bool) ([]*provision.Result, error) {
	var results []*provision.Result
	for i, entry := range file.Contacts {
		req := provision.Request{
			ProjectID: entry.ProjectID,
			AccountID: entry.AccountID,
			Name:      entry.Name,
			Email:     entry.Email,
		}
		resolveIDs(&req, config)

		var res *provision.Result
		var err error
		if dryRun {
			res, err = provision.Preview(database, req)
		} else {
			res, err = provision.RunInTx(database, req)
		}
		if err != nil {
			return results, fmt.Errorf("entry %d (%q): %w", i+1, entry.Name, err)
		}
		verbosef("entry %d: contact %d linked to project %d", i+1, res.Contact.ID, res.Project.ID)
		results = append(results, res)
	}
	return results, nil
}

var importCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Provision a batch of contacts from YAML",
	Long: `Provision contacts listed in a YAML file. Each entry is created and
linked in its own transaction; the import stops at the first failure and
entries already created stay in place.

File format:
  contacts:
    - name: Jane Doe
      email: jane@example.com
    - name: Bob Smith
      email: bob@example.com
      project_id: 12
      account_id: 3

Use '-' to read from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var data []byte
		var err error
		if args[0] == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(args[0])
		}
		if err != nil {
			return fmt.Errorf("failed to read import file: %w", err)
		}
		file, err := parseImport(data)
		if err != nil {
			return err
		}

		database, config, err := openDB()
		if err != nil {
			return err
		}
		defer func() { _ = database.Close() }()

		results, err := runImport(database, config, file, flagImportDryRun)
		w := cmd.OutOrStdout()
		for _, res := range results {
			fmt.Fprintf(w, "%d\t%s\t%s\n", res.Contact.ID, res.Contact.Name, res.Contact.PrimaryEmail())
		}
		verb := "Imported"
		if flagImportDryRun {
			verb = "Would import"
		}
		fmt.Fprintf(w, "%s %d of %d contacts\n", verb, len(results), len(file.Contacts))
		if err != nil {
			return &exitError{code: provision.ExitCode(err), err: err}
		}
		return nil
	},
}

func init() {
	importCmd.Flags().BoolVar(&flagImportDryRun, "dry-run", false, "Check every entry without writing")
	rootCmd.AddCommand(importCmd)
}
