package cli

import (
	"context"
	"encoding/json"

	"github.com/m-mizutani/curator/pkg/analysis"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func schemaCommand() *cli.Command {
	return &cli.Command{
		Name:  "schema",
		Usage: "Print the JSON schema of the answer expected from the analysis service",
		Action: func(ctx context.Context, c *cli.Command) error {
			schema, err := analysis.ResponseSchema()
			if err != nil {
				return err
			}

			encoder := json.NewEncoder(c.Root().Writer)
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(schema); err != nil {
				return goerr.Wrap(err, "failed to encode schema")
			}
			return nil
		},
	}
}
