// Command era loads content packages into a merged module registry and
// serves snapshots of it.
package main

import "github.com/mesh-intelligence/era/internal/cli"

func main() {
	cli.Execute()
}
