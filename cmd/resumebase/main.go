package main

import "github.com/vuminh/resumebase/internal/cli"

func main() {
	cli.Execute()
}
