// retest reruns a build and a test command on every source change and
// highlights how the test output changed.
package main

import (
	"os"

	"github.com/hupe1980/retest/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
