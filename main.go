// ./main.go
package main

import (
	"github.com/entropydec/gsrb/cmd"
)

func main() {
	cmd.Execute()
}
