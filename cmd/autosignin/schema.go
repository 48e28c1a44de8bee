package main

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/amishk599/autosignin/internal/model"
	"github.com/amishk599/autosignin/internal/sites"
)

var reseedSchema bool

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the config schema of all supported sites",
	Long:  "Prints the merged per-site config schema as YAML; --reseed prints the reseed schema instead.",
	RunE:  runSchema,
}

func init() {
	schemaCmd.Flags().BoolVar(&reseedSchema, "reseed", false, "print the reseed schema")
	rootCmd.AddCommand(schemaCmd)
}

func runSchema(cmd *cobra.Command, args []string) error {
	reg, err := sites.NewRegistry(sites.Deps{})
	if err != nil {
		return err
	}

	var schema model.Schema
	if reseedSchema {
		schema, err = reg.ReseedSchema()
	} else {
		schema, err = reg.SignInSchema()
	}
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(map[string]any(schema))
}
