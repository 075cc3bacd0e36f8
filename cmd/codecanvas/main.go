// Command codecanvas serves the CodeCanvas generation API and runs single
// generations from the command line.
package main

func main() {
	Execute()
}
