package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/yungbote/student-service/internal/app"
)

func newCourseCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "course <id>...",
		Short: "Fetch course summaries through the retry and breaker policy",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			res, probeErr := app.ProbeCourses(commandContext(cmd), cfg, ids)
			if res != nil {
				out := map[string]any{
					"courses": res.Courses,
					"breaker": res.Breaker,
					"counts":  res.Counts,
				}
				if res.Courses == nil {
					out["courses"] = []any{}
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(out); err != nil {
					return err
				}
			}
			return probeErr
		},
	}
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, raw := range args {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid course id %q", raw)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
