// Command ckdctl formats CKD image files, drives CCW channel programs
// against them, and inspects or watches a disk's rotational state.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "ckdctl",
		Short: "Format, run, and inspect CKD disk images",
	}
	root.AddCommand(newFormatCmd())
	root.AddCommand(newRunCmd())
	root.AddCommand(newInspectCmd())
	root.AddCommand(newWatchCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
