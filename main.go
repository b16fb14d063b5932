// The main package for the blogserver executable.
package main

import "github.com/JakeFAU/blog-ssr/cmd"

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
