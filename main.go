// Command docscrawl crawls documentation sites into per-domain Markdown files.
package main

import "github.com/JakeFAU/docscrawl/cmd"

func main() {
	cmd.Execute()
}
