// The main package for the jobspy executable.
package main

import "github.com/JakeFAU/jobspy-server/cmd"

func main() {
	cmd.Execute()
}
