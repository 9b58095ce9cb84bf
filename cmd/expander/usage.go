package main

import (
	"fmt"
	"os"
)

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  expander [expand] [--trace] [--json] <file.js>")
	fmt.Fprintln(os.Stderr, "  expander deps install")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Environment:")
	fmt.Fprintln(os.Stderr, "  EXPANDER_HOME            dependency cache (default ~/.expander)")
	fmt.Fprintln(os.Stderr, "  EXPANDER_MAX_EXPANSIONS  macro expansions allowed per module")
	fmt.Fprintln(os.Stderr, "  EXPANDER_MAX_DEPTH       nesting allowed for one expansion chain")
}
