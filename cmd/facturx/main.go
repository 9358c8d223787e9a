package main

import (
	"fmt"
	"os"

	"github.com/rezonia/facturx/cmd/facturx/cmd"
	"github.com/rezonia/facturx/internal/schema"
)

func main() {
	err := cmd.Execute()
	schema.Cleanup()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
