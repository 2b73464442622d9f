// Package inspect implements the command that summarizes an existing dataset
// container.
package inspect

import (
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/chirpset/chirpset/internal/dataset"
)

// Command creates the inspect subcommand.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [container.hdf5]",
		Short: "Print the shapes and metadata of a dataset container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0])
		},
	}
}

func run(path string) error {
	r, err := dataset.OpenReader(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}

	fmt.Printf("%s\n", path)
	fmt.Printf("  data:        %v\n", r.DataShape())
	fmt.Printf("  labels:      %v\n", r.LabelShape())
	fmt.Printf("  compression: %s\n", r.Compression())

	attrs := r.Attrs()
	if len(attrs) == 0 {
		fmt.Println("  metadata:    (none)")
		return nil
	}
	fmt.Println("  metadata:")
	for _, k := range slices.Sorted(maps.Keys(attrs)) {
		fmt.Printf("    %s: %s\n", k, attrs[k])
	}
	return nil
}
