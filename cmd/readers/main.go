// Command readers compiles a spec against a YAML schema, fetches the data and prints its projection.
//
//	readers fetch --schema schema.yaml --model widget --spec widget.yaml --driver sqlite --dsn app.db
//	readers sql --schema schema.yaml --model widget --spec widget.yaml --limit 10
//	readers describe --schema schema.yaml widget
package main

import (
	"os"

	"github.com/AntonStoeckl/dynamic-readers-go/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
