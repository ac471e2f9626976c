/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/subtrack/family-services/cmd"

func main() {
	cmd.Execute()
}
