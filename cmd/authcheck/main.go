package main

import (
	"os"

	"github.com/makersmarket/session-auth-service/internal/tools/authcheck"
)

func main() {
	if err := authcheck.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
