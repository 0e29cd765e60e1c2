package cmd

import (
	"fmt"
	"runtime"

	"grimm.is/rtmirror/internal/brand"
)

// RunVersion prints build information.
func RunVersion() {
	fmt.Fprintf(Stdout, "%s version %s\n", brand.Name, brand.Version)
	fmt.Fprintf(Stdout, "Build: %s (%s)\n", brand.BuildTime, brand.GitCommit)
	fmt.Fprintf(Stdout, "Go: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
