// Command coronafit fits geometric CME models to coronagraph marks and
// derives height-time kinematics from the fitted sequence.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/coronafit/internal/timeutil"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd(os.Stdout, os.Stderr, timeutil.RealClock{})
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "coronafit:", err)
		stop()
		os.Exit(1)
	}
}
