package main

import (
	"github.com/nstlabs/prepdesk/internal/server"
)

func main() {
	s := server.New()
	s.Start()
}
