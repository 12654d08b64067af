package main

import "github.com/comoco/mysqldump/cmd"

func main() {
	cmd.Execute()
}
