package main

import (
	"fmt"

	"github.com/pairly/messaging-service/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		fmt.Println(err.Error())
		return
	}
}
