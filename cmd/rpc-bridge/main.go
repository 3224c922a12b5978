package main

import "github.com/rpcbridge/rpcbridge/cmd/rpc-bridge/cmd"

func main() {
	cmd.Execute()
}
