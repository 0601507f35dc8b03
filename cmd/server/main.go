package main

import (
	"shortly/internal/app/server"
)

func main() {
	server.Run()
}
