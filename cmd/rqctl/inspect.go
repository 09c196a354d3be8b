package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var inspectState string

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "List request IDs by state (new, handled, notified)",
	RunE:  runInspect,
}

func init() {
	inspectCmd.Flags().StringVar(&inspectState, "state", "new", "new|handled|notified")
}

func runInspect(cmd *cobra.Command, args []string) error {
	q, err := openQueue(rootCtx, nil, nil)
	if err != nil {
		return err
	}

	var (
		ids  []int64
		ierr error
	)
	switch inspectState {
	case "new":
		ids, ierr = q.NotHandledRequestIDs(rootCtx)
	case "handled":
		ids, ierr = q.NotNotifiedRequestIDs(rootCtx)
	case "notified":
		ids, ierr = q.NotifiedRequestIDs(rootCtx)
	default:
		return fmt.Errorf("rqctl: --state must be one of new, handled, notified (got %q)", inspectState)
	}
	if ierr != nil {
		return fmt.Errorf("rqctl: inspect: %w", ierr)
	}

	for _, id := range ids {
		fmt.Println(id)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%d request(s) in state %s\n", len(ids), inspectState)
	return nil
}
