// Command mb-mixer loops a background track and splices sound effects into
// the mix while it plays.
package main

import "os"

func main() {
	os.Exit(execute())
}
