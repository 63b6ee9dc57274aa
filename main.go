// The main package for the productcopy executable.
package main

import (
	"github.com/JakeFAU/product-copy/cmd"
)

func main() {
	cmd.Execute()
}
