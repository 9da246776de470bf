package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ekaya-inc/ekaya-hangar/pkg/models"
	hangarsql "github.com/ekaya-inc/ekaya-hangar/pkg/sql"
)

var (
	queryParams []string
	returnOne   bool
)

var variablesCmd = &cobra.Command{
	Use:   "variables <query>",
	Short: "List the tagged variables a catalog query accepts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		def, err := lookupQuery(a, args[0])
		if err != nil {
			return err
		}
		vars, err := hangarsql.GetVariables(def, hangarsql.ExtractOptions{Deduplicate: true})
		if err != nil {
			return err
		}
		for _, v := range vars {
			fmt.Fprintln(cmd.OutOrStdout(), v)
		}
		return nil
	},
}

var renderCmd = &cobra.Command{
	Use:   "render <query>",
	Short: "Print the SQL a catalog query renders to, without running it",
	Example: `  hangar render customers_by_region -p region=EU
  hangar render orders_for -p list:int:ids=1,2,3`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		def, err := lookupQuery(a, args[0])
		if err != nil {
			return err
		}
		params, err := parseParams(queryParams)
		if err != nil {
			return err
		}
		rendered, err := a.queries.Render(def, params)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), rendered)
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run <query>",
	Short: "Run a catalog query and print the result as JSON",
	Example: `  hangar run customers_by_region -p region=EU
  hangar run customer --one -p int:id=7`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		def, err := lookupQuery(a, args[0])
		if err != nil {
			return err
		}
		params, err := parseParams(queryParams)
		if err != nil {
			return err
		}
		result, err := a.queries.Run(cmdContext(cmd), def, returnOne, params)
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), result)
	},
}

func init() {
	for _, c := range []*cobra.Command{renderCmd, runCmd} {
		c.Flags().StringArrayVarP(&queryParams, "param", "p", nil, "Query parameter as key=value; keys take the int:, list: and list:int: prefixes")
	}
	runCmd.Flags().BoolVar(&returnOne, "one", false, "Return only the first row; fail when there is none")

	rootCmd.AddCommand(variablesCmd, renderCmd, runCmd)
}

func lookupQuery(a *app, name string) (*models.QueryDefinition, error) {
	def, err := a.catalog.Query(name)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", name, err)
	}
	return def, nil
}

// parseParams casts key=value flags the same way the HTTP routes cast
// query strings.
func parseParams(pairs []string) (map[string]any, error) {
	values := url.Values{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q (expected key=value)", pair)
		}
		values.Set(key, value)
	}
	return hangarsql.CastRequestParams(values)
}

type runOutput struct {
	SQL    string `json:"sql"`
	Result any    `json:"result"`
}

func printResult(w io.Writer, result *models.ExecutionResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(runOutput{SQL: result.SQL, Result: result.Payload()})
}

// cmdContext returns the command's context, or Background when run outside Execute.
func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
