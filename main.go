package main

import "github.com/praveencs87/mylyn-webissues-sub001/cmd"

func main() {
	cmd.Execute()
}
