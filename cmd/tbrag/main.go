// Command tbrag serves and feeds the textbook question-answering assistant.
// It provides the HTTP API, a bulk ingestion command and a one-shot CLI query.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/tbrag-go/cmd/tbrag/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
