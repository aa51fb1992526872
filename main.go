/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/opentdf/contextvault/cmd"

func main() {
	cmd.Execute()
}
