package main

import "github.com/frahmantamala/expense-reporting/cmd"

func main() {
	cmd.Execute()
}
