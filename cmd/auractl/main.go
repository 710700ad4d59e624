// Command auractl runs operator tasks against the aura database: schema
// migrations, outbox DLQ passes, webhook failure replay and mission seeding.
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "auractl: "+err.Error())
		os.Exit(1)
	}
}
