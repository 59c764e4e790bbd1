// Package main implements the weekshift CLI.
// This file contains the offline document rewriting command.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/net/html"

	"weekshift/internal/grid"
)

var realignOut string

var realignCmd = &cobra.Command{
	Use:   "realign [file]",
	Short: "Rewrite a saved page's calendar table offline",
	Long: `Reads an HTML document from a file (or stdin when no file is given),
applies the Monday-first correction to its calendar table, and writes the
whole document out again. Documents without a well-formed Sunday-first grid
pass through unchanged.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRealign,
}

func init() {
	realignCmd.Flags().StringVarP(&realignOut, "output", "o", "", "write the result to a file instead of stdout")
}

func runRealign(cmd *cobra.Command, args []string) error {
	var in io.Reader = os.Stdin
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	var out io.Writer = os.Stdout
	if realignOut != "" {
		f, err := os.Create(realignOut)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	changed, err := realignDocument(in, out)
	if err != nil {
		return err
	}
	if changed {
		fmt.Fprintln(os.Stderr, "calendar grid realigned")
	} else {
		fmt.Fprintln(os.Stderr, "no correction needed")
	}
	return nil
}

func realignDocument(in io.Reader, out io.Writer) (bool, error) {
	doc, err := html.Parse(in)
	if err != nil {
		return false, fmt.Errorf("parse document: %w", err)
	}
	changed := false
	if table := grid.FindTable(doc); table != nil {
		changed = grid.NewRealigner(logger).Realign(table)
	}
	if err := html.Render(out, doc); err != nil {
		return changed, fmt.Errorf("render document: %w", err)
	}
	return changed, nil
}
