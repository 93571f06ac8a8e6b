package main

import "github.com/Layr-Labs/pricefeed-sidecar/cmd"

func main() {
	cmd.Execute()
}
