package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rezonia/facturx/internal/cii"
	"github.com/rezonia/facturx/internal/model"
	"github.com/rezonia/facturx/internal/schema"
)

var (
	checkProfile string
	checkXSDDir  string
)

var checkXMLCmd = &cobra.Command{
	Use:   "check-xml [files...]",
	Short: "Validate XML against the Factur-X XSD of its profile",
	Long: `Validate existing Factur-X XML files against the official XSD schemas.

The profile is read from the document's guideline parameter unless
--profile is given. Schemas are looked up in --xsd-dir as
Factur-X_<PROFILE>.xsd or the versioned Factur-X_<version>_<PROFILE>.xsd.
Order-X documents use Order-X_<BASIC|COMFORT|EXTENDED>.xsd.

Examples:
  facturx check-xml factur-x.xml --xsd-dir ./xsd
  facturx check-xml out/*.xml --profile EN16931 --xsd-dir ./xsd`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheckXML,
}

func init() {
	rootCmd.AddCommand(checkXMLCmd)

	checkXMLCmd.Flags().StringVar(&checkProfile, "profile", "", "Profile to validate against (default: from the document)")
	checkXMLCmd.Flags().StringVar(&checkXSDDir, "xsd-dir", "", "Directory of Factur-X XSD files (env: FACTURX_XSD_DIR)")
}

// CheckResult holds the schema check of a single file
type CheckResult struct {
	File    string   `json:"file"`
	Valid   bool     `json:"valid"`
	Profile string   `json:"profile,omitempty"`
	Kind    string   `json:"kind,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

func runCheckXML(cmd *cobra.Command, args []string) error {
	dir := xsdDir(checkXSDDir)
	if dir == "" {
		return fmt.Errorf("check-xml needs --xsd-dir (or FACTURX_XSD_DIR)")
	}

	var forced model.Profile
	if checkProfile != "" {
		p, err := model.ParseProfile(checkProfile)
		if err != nil {
			return err
		}
		forced = p
	}

	files, err := collectFiles(args, generatedExts)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no XML files found")
	}

	validator, err := schema.New(dir)
	if err != nil {
		return err
	}
	defer validator.Free()

	results := make([]*CheckResult, 0, len(files))
	allValid := true
	for _, file := range files {
		r := checkFile(cmd, validator, forced, file)
		results = append(results, r)
		if !r.Valid {
			allValid = false
		}
	}

	out := cmd.OutOrStdout()
	if outputFormat == "json" {
		if err := printJSON(out, results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			if r.Valid {
				fmt.Fprintf(out, "✓ %s: VALID (%s)\n", r.File, r.Profile)
				continue
			}
			fmt.Fprintf(out, "✗ %s: INVALID\n", r.File)
			for _, e := range r.Errors {
				fmt.Fprintf(out, "  - %s\n", e)
			}
		}
	}

	if !allValid {
		return fmt.Errorf("schema validation failed for some files")
	}
	return nil
}

func checkFile(cmd *cobra.Command, v *schema.Validator, forced model.Profile, file string) *CheckResult {
	r := &CheckResult{File: file}

	data, err := os.ReadFile(file)
	if err != nil {
		r.Errors = []string{err.Error()}
		return r
	}

	p, kind, err := cii.DetectDocument(data)
	if forced != "" {
		p = forced
	} else if err != nil {
		r.Errors = []string{fmt.Sprintf("cannot detect profile: %v (use --profile)", err)}
		return r
	}
	r.Profile = string(p)
	r.Kind = string(kind)

	err = v.Validate(cmd.Context(), kind, p, data)
	var schemaErr *schema.SchemaError
	switch {
	case err == nil:
		r.Valid = true
	case errors.As(err, &schemaErr):
		r.Errors = schemaErr.Messages
	default:
		r.Errors = []string{err.Error()}
	}
	return r
}
