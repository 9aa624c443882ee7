package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/admincache/internal/model"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string
}

// CompilationResult holds the compiled resource definitions.
type CompilationResult struct {
	SchemaVersion string                     `json:"schemaVersion"`
	Resources     []model.ResourceDefinition `json:"resources"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile [schema]",
		Short: "Compile a resource schema to JSON definitions",
		Long: `Compile a CUE resource schema into the resource definitions the
engine registers, with every default filled in: page size, sort, and
reference kinds.

The schema defaults to schema.path from the configuration.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := schemaPath(rootOpts, args)
			if err != nil {
				return err
			}
			return runCompile(opts, path, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write definitions to this file")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	f.VerboseLog("Compiling %s", path)

	defs, problems := loadSchema(path)
	if len(problems) > 0 {
		return outputCompileErrors(f, problems)
	}
	result := CompilationResult{SchemaVersion: model.SchemaVersion, Resources: defs}

	if opts.Output != "" {
		if err := writeDefinitions(result, opts.Output); err != nil {
			return f.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	if f.JSON() {
		return f.Success(result)
	}
	f.Printf("✓ Compiled %d resource(s)\n\n", len(defs))
	for _, def := range defs {
		f.Printf("  %s\n", describeResource(def))
	}
	if opts.Output != "" {
		f.Printf("\nWrote definitions to %s\n", opts.Output)
	}
	return nil
}

// describeResource is the one-line text summary of a definition.
func describeResource(def model.ResourceDefinition) string {
	var caps []string
	for _, c := range []struct {
		on   bool
		name string
	}{
		{def.Capabilities.HasList, "list"},
		{def.Capabilities.HasCreate, "create"},
		{def.Capabilities.HasEdit, "edit"},
		{def.Capabilities.HasShow, "show"},
		{def.Capabilities.HasDelete, "delete"},
	} {
		if c.on {
			caps = append(caps, c.name)
		}
	}
	lp := def.ListDefaults()
	line := fmt.Sprintf("%s [%s] perPage=%d sort=%s %s",
		def.Name, strings.Join(caps, ","), lp.Pagination.PerPage, lp.Sort.Field, lp.Sort.Order)

	fields := model.SortedKeys(def.References)
	refs := make([]string, 0, len(fields))
	for _, field := range fields {
		ref := def.References[field]
		refs = append(refs, fmt.Sprintf("%s->%s(%s)", field, ref.Reference, ref.Kind))
	}
	if len(refs) > 0 {
		line += " refs: " + strings.Join(refs, " ")
	}
	return line
}

func outputCompileErrors(f *OutputFormatter, problems []SchemaProblem) error {
	exitCode := ExitFailure
	if problems[0].Code == ErrCodeNotFound {
		exitCode = ExitCommandError
	}
	if f.JSON() {
		first := problems[0]
		if err := f.encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: first.Code, Message: first.Message},
			Data:   problems,
		}); err != nil {
			return err
		}
	} else {
		f.Printf("✗ Compilation failed\n\n")
		for _, p := range problems {
			f.Printf("  %s\n", p)
		}
	}
	return NewExitError(exitCode, fmt.Sprintf("compilation failed with %d error(s)", len(problems)))
}

func writeDefinitions(result CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling definitions: %w", err)
	}
	if err := os.WriteFile(filename, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
