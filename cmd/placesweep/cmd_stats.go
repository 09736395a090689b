package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"placesweep/internal/store"
)

var statsRuns int

// statsCmd summarises the store
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the number of stored places and the latest sweeps",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().IntVar(&statsRuns, "runs", 5, "Number of recent runs to show")
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, cancel := commandContext()
	defer cancel()

	count, err := st.Count(ctx)
	if err != nil {
		return err
	}
	runs, err := st.RecentRuns(ctx, statsRuns)
	if err != nil {
		return err
	}

	fmt.Println(renderStats(st.Path(), st.Driver(), count, runs))
	return nil
}

func renderStats(path, driver string, count int, runs []store.Run) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("placesweep"))
	b.WriteString("\n")
	b.WriteString(labelStyle.Render("Database") + valueStyle.Render(path) + "\n")
	b.WriteString(labelStyle.Render("Driver") + valueStyle.Render(driver) + "\n")
	b.WriteString(labelStyle.Render("Places") + valueStyle.Render(fmt.Sprintf("%d", count)))

	if len(runs) == 0 {
		b.WriteString("\n" + labelStyle.Render("Runs") + "none")
		return boxStyle.Render(b.String())
	}

	b.WriteString("\n\n" + titleStyle.Render("Recent runs"))
	for _, r := range runs {
		line := lipgloss.JoinHorizontal(lipgloss.Top,
			labelStyle.Render(r.StartedAt.Format("2006-01-02 15:04:05")),
			statusStyle(r.Status).Width(10).Render(r.Status),
			fmt.Sprintf("req=%d found=%d new=%d bbox=%s", r.Requests, r.Encountered, r.Inserted, r.BBox),
		)
		b.WriteString("\n" + line)
		if r.ResumePath != "" || r.Status == store.RunAborted {
			b.WriteString("\n" + labelStyle.Render("") + fmt.Sprintf("resume: --skip-to %q  %s", r.ResumePath, r.Error))
		}
	}
	return boxStyle.Render(b.String())
}
