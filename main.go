// sitemapper maps a website: it crawls breadth-first from a start URL and
// produces a graph of pages and links.
package main

import "github.com/pagescope/sitemapper/cmd"

func main() {
	cmd.Execute()
}
