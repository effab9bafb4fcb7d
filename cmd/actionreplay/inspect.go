package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"actionreplay/internal/action"
	"actionreplay/internal/modifier"

	"github.com/spf13/cobra"
)

func newInspectCmd() *cobra.Command {
	var showItems bool
	cmd := &cobra.Command{
		Use:   "inspect <file|group>",
		Short: "Show a group, its modifiers and the items playback would skip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			g, err := resolveGroup(a, args[0])
			if err != nil {
				return err
			}
			inspectGroup(os.Stdout, g, showItems)
			return nil
		},
	}
	cmd.Flags().BoolVar(&showItems, "items", false, "List every item after modifiers")
	return cmd
}

func inspectGroup(out io.Writer, g *action.Group, showItems bool) {
	fmt.Fprintf(out, "Group: %s\n", g.Name)
	fmt.Fprintf(out, "  ID: %s\n", g.ID)
	fmt.Fprintf(out, "  Items: %d (span %s)\n", len(g.Items), g.Span())

	mods := modifier.Sorted(g.Modifiers)
	fmt.Fprintf(out, "  Modifiers: %d\n", len(mods))
	for _, m := range mods {
		fmt.Fprintf(out, "    [%d] %s", m.Priority, m.Name)
		if m.Description != "" {
			fmt.Fprintf(out, " - %s", m.Description)
		}
		fmt.Fprintln(out)
	}

	items := modifier.Apply(g.Items, g.Modifiers)
	invalid := 0
	for i, it := range items {
		if err := it.Validate(); err != nil {
			invalid++
			fmt.Fprintf(out, "  ✗ item %d (%s) will be skipped: %v\n", i, it.Type, err)
		}
	}
	if invalid == 0 {
		fmt.Fprintln(out, "  ✓ All items valid")
	}

	if !showItems {
		return
	}
	fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tAT\tTYPE\tDETAIL\tHOLD")
	for i, it := range items {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", i, it.At(), it.Type, itemDetail(it), it.Hold())
	}
	w.Flush()
}

func itemDetail(it action.Item) string {
	switch {
	case it.Type.IsKey():
		return fmt.Sprintf("vk 0x%02X", it.KeyCode)
	case it.Type.IsButton() && it.Coordinates != nil:
		return fmt.Sprintf("%s @ %d,%d", it.Button, it.Coordinates.X, it.Coordinates.Y)
	case it.Type == action.Wheel && it.Coordinates != nil:
		return fmt.Sprintf("%+d @ %d,%d", it.WheelDelta, it.Coordinates.X, it.Coordinates.Y)
	case it.Coordinates != nil:
		return fmt.Sprintf("%d,%d", it.Coordinates.X, it.Coordinates.Y)
	}
	return ""
}
