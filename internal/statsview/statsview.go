// Package statsview serves live runtime statistics (goroutines, heap, GC)
// of a running simulation over HTTP.
package statsview

import (
	"fmt"
	"io"

	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
)

const DEFAULT_ADDRESS = "localhost:12600"

const url = "/debug/statsview"

// URL returns where the statistics are served for addr.
func URL(addr string) string {
	return fmt.Sprintf("http://%s%s", addr, url)
}

// Launch starts the statistics server in the background, and reports its
// location to output.
func Launch(output io.Writer, addr string) {
	if addr == "" {
		addr = DEFAULT_ADDRESS
	}

	go func() {
		viewer.SetConfiguration(viewer.WithAddr(addr))
		mgr := statsview.New()
		mgr.Start()
	}()

	fmt.Fprintf(output, "stats server available at %s\n", URL(addr))
}
