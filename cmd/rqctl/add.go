package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kestrelq/rowqueue/internal/queue"
)

var (
	addFailIfDuplicate bool
	addFile            string
)

// addCmd reads a JSON array of {"id": int64, "data": "..."} objects (from
// --file, or stdin when --file is omitted) and enqueues them with Add.
var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Enqueue requests from a JSON file or stdin",
	Long: `Reads a JSON array of request objects and enqueues them in a single
Add call.

  [{"id": 1, "data": "cGF5bG9hZA=="}, {"id": 2, "data": "bW9yZQ=="}]

"data" is base64, matching encoding/json's []byte convention.`,
	RunE: runAdd,
}

func init() {
	addCmd.Flags().BoolVar(&addFailIfDuplicate, "fail-if-duplicate", true, "abort the whole batch if any request_id already exists")
	addCmd.Flags().StringVar(&addFile, "file", "", "path to a JSON request array (default: stdin)")
}

type addRequest struct {
	ID   int64  `json:"id"`
	Data []byte `json:"data"`
}

func runAdd(cmd *cobra.Command, args []string) error {
	src := os.Stdin
	if addFile != "" {
		f, err := os.Open(addFile)
		if err != nil {
			return fmt.Errorf("rqctl: %w", err)
		}
		defer func() { _ = f.Close() }()
		src = f
	}

	var raw []addRequest
	if err := json.NewDecoder(src).Decode(&raw); err != nil {
		return fmt.Errorf("rqctl: decoding request batch: %w", err)
	}

	reqs := make([]queue.Request, len(raw))
	for i, r := range raw {
		reqs[i] = queue.Request{ID: r.ID, Data: r.Data}
	}

	q, err := openQueue(rootCtx, nil, nil)
	if err != nil {
		return err
	}
	if err := q.Add(rootCtx, reqs, addFailIfDuplicate); err != nil {
		return fmt.Errorf("rqctl: add: %w", err)
	}
	fmt.Printf("enqueued %d request(s)\n", len(reqs))
	return nil
}
