// Command docrepo provisions collections and reads or writes documents in
// the configured document store.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd(openSession).Execute(); err != nil {
		os.Exit(1)
	}
}
