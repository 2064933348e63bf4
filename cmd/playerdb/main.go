// Command playerdb administers the player entity store.
package main

import "github.com/mesh-intelligence/playerdb/internal/cli"

func main() {
	cli.Execute()
}
