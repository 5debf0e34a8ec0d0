// Command todo manages a synced todo list and serves its REST API.
package main

import (
	"context"
	"os"

	"github.com/roach88/todosync/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), cli.NewRootCommand(), os.Stderr))
}
