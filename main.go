package main

import (
	"github.com/HashemBader/lccn-harvester/cmd"
)

var execute = cmd.Execute

func main() {
	execute()
}
