// Command fetcher runs a single crawld worker process.
package main

import (
	"os"

	"github.com/jonesrussell/crawld/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
