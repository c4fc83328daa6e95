package main

import "github.com/mcoot/lessonprogress/internal/cli"

func main() {
	cli.Execute()
}
