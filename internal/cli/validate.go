package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ValidationResult is the output of the validate command.
type ValidationResult struct {
	Valid     bool            `json:"valid"`
	Resources int             `json:"resources"`
	Errors    []SchemaProblem `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [schema]",
		Short: "Validate a resource schema",
		Long: `Compile a CUE resource schema and check the definitions against
each other: duplicate names, unknown references, reference targets,
sort orders, page sizes and filters.

The schema defaults to schema.path from the configuration.

Exit codes:
  0 - Schema is valid
  1 - Schema has errors
  2 - Command error (schema not found, bad config)`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := schemaPath(rootOpts, args)
			if err != nil {
				return err
			}
			return runValidate(rootOpts, path, cmd)
		},
	}
	return cmd
}

// schemaPath is the positional schema argument, or schema.path from the
// configuration.
func schemaPath(opts *RootOptions, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	cfg, err := opts.loadConfig()
	if err != nil {
		return "", err
	}
	return cfg.Schema.Path, nil
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	f.VerboseLog("Validating %s", path)

	defs, problems := loadSchema(path)
	if len(problems) == 1 && problems[0].Code == ErrCodeNotFound {
		return f.Fail(ExitCommandError, problems[0].Code, problems[0].Message, nil)
	}

	result := ValidationResult{Valid: len(problems) == 0, Resources: len(defs), Errors: problems}
	if f.JSON() {
		if err := f.encode(CLIResponse{Status: status(result.Valid), Data: result}); err != nil {
			return err
		}
	} else if result.Valid {
		f.Printf("✓ %s: %d resource(s) valid\n", path, result.Resources)
	} else {
		f.Printf("✗ %s: %d error(s)\n\n", path, len(problems))
		for _, p := range problems {
			f.Printf("  %s\n", p)
		}
	}

	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(problems)))
	}
	return nil
}

func status(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
