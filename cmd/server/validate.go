package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/garyjia/ringi/internal/domain/workflow"
)

var validateCmd = &cobra.Command{
	Use:   "validate <definition-file>",
	Short: "Check a workflow definition file (YAML or JSON) without a server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read definition: %w", err)
		}
		body, err := definitionJSON(filepath.Ext(args[0]), raw)
		if err != nil {
			return err
		}

		result := workflow.ValidateDefinition(body)
		printValidation(cmd.OutOrStdout(), args[0], result)
		if !result.Valid {
			return fmt.Errorf("definition has %d issue(s)", len(result.Errors))
		}
		return nil
	},
}

// definitionJSON returns the definition body as JSON. YAML input is decoded
// and re-encoded; anything else is passed through as JSON.
func definitionJSON(ext string, raw []byte) ([]byte, error) {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
	default:
		return raw, nil
	}

	var doc interface{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML definition: %w", err)
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to convert definition to JSON: %w", err)
	}
	return body, nil
}

func printValidation(w io.Writer, name string, result workflow.ValidationResult) {
	if result.Valid {
		fmt.Fprintf(w, "%s: valid\n", name)
		return
	}
	fmt.Fprintf(w, "%s: invalid\n", name)
	for _, issue := range result.Errors {
		if issue.StepID != "" {
			fmt.Fprintf(w, "  [%s] step %s: %s\n", issue.Code, issue.StepID, issue.Message)
			continue
		}
		fmt.Fprintf(w, "  [%s] %s\n", issue.Code, issue.Message)
	}
}
