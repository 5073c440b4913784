package main

import "gitlab.com/vitanet-network/settlement_api/cmd"

func main() {
	cmd.Execute()
}
