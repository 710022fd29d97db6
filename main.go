package main

import "github.com/RubachokBoss/plagiarism-checker/cmd"

func main() {
	cmd.Execute()
}
