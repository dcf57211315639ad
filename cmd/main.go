package main

import (
	"os"

	"github.com/yungbote/student-service/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
