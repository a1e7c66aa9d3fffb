// Command eventsctl administers the event approvals service: schema
// migration, catalog seeding, read-only inspection against the database and
// approval decisions over gRPC.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd(defaultEnv()).Execute(); err != nil {
		os.Exit(1)
	}
}
