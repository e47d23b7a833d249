package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sweeper/internal/recipe"
)

var recipeCmd = &cobra.Command{
	Use:   "recipe",
	Short: "Work with YAML recipe files",
}

var recipeCheckCmd = &cobra.Command{
	Use:   "check [files...]",
	Short: "Validate recipe files and print their steps",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var bad int
		for _, path := range args {
			r, err := recipe.Load(path)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%v\n", err)
				bad++
				continue
			}
			steps := r.Steps()
			if len(steps) == 0 {
				steps = []string{"(none)"}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok, steps: %s, format: %s, archive: %v\n",
				path, strings.Join(steps, ", "), r.Target(), r.Archive)
		}
		if bad > 0 {
			return fmt.Errorf("%d of %d recipes invalid", bad, len(args))
		}
		return nil
	},
}

var recipeInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Print an example recipe",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := exampleRecipe().Marshal()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

func exampleRecipe() *recipe.Recipe {
	return &recipe.Recipe{
		Dedupe:      true,
		FillMissing: true,
		Filter:      "age >= 18",
		Rename:      map[string]string{"age": "Age"},
		Format:      "xlsx",
		Archive:     true,
	}
}

func init() {
	recipeCmd.AddCommand(recipeCheckCmd, recipeInitCmd)
	rootCmd.AddCommand(recipeCmd)
}
