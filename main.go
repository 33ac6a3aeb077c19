package main

import "github.com/redactyl/piiscan/cmd/piiscan"

func main() { piiscan.Execute() }
