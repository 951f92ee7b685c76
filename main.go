// The main package for the iconshelf executable.
package main

import (
	"github.com/JakeFAU/iconshelf/cmd"
)

func main() {
	cmd.Execute()
}
