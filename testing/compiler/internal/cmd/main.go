package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Printf("%s: %v\n", os.Getenv("FOO"), os.Args[1:])
}
