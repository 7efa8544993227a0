// Command dosflow runs the integrated telescope model.
package main

import "github.com/dosflow/dosflow/cmd/dosflow/cmd"

func main() {
	cmd.Execute()
}
