package main

import (
	"fmt"
	"io"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/vanderheijden86/edumap/pkg/analysis"
	"github.com/vanderheijden86/edumap/pkg/model"
)

// analyzeReport combines the backend's centrality with locally computed
// structure.
type analyzeReport struct {
	GraphID   string             `json:"graph_id"`
	Source    string             `json:"source"`
	InDegree  map[string]float64 `json:"in_degree_centrality"`
	OutDegree map[string]float64 `json:"out_degree_centrality"`
	Structure *analysis.Stats    `json:"structure"`
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var top int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "analyze <graph-id|snapshot.json>",
		Short: "Report centrality, PageRank and cycles for a graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			v, err := a.newViewer(false, nil)
			if err != nil {
				return err
			}
			defer v.close()
			if err := a.show(ctx, v, args[0], ""); err != nil {
				return err
			}

			snap := v.sess.Store().Snapshot()
			stats := analysis.NewAnalyzer(snap).Analyze()
			report := analyzeReport{
				GraphID:   v.sess.GraphID(),
				Source:    "local",
				InDegree:  stats.InDegree,
				OutDegree: stats.OutDegree,
				Structure: stats,
			}
			if !isSnapshotFile(args[0]) {
				res, err := v.sess.Analyze(ctx)
				if err != nil {
					a.reportNotice(v.sess)
					return err
				}
				report.Source = "backend"
				report.InDegree, report.OutDegree = res.InDegree, res.OutDegree
			}

			if asJSON {
				data, err := json.MarshalIndent(report, "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(a.out, string(data))
				return err
			}
			printReport(a.out, snap, report, top)
			return nil
		},
	}
	cmd.Flags().IntVarP(&top, "top", "n", 10, "rows per ranking")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full report as JSON")
	return cmd
}

func printReport(w io.Writer, snap model.Snapshot, r analyzeReport, top int) {
	s := r.Structure
	printSummary(w, r.GraphID, snap)
	fmt.Fprintln(w, subtleStyle.Render(fmt.Sprintf("centralidad: %s · densidad %.3f", r.Source, s.Density)))
	fmt.Fprintln(w)

	printScores(w, "Centralidad de entrada", analysis.Ranked(r.InDegree, top))
	printScores(w, "Centralidad de salida", analysis.Ranked(r.OutDegree, top))
	printScores(w, "PageRank", labelScores(snap, analysis.Ranked(s.PageRank, top)))
	fmt.Fprintln(w)

	labels := labelIndex(snap)
	fmt.Fprintf(w, "%s %s\n", headerStyle.Render("Raíces:"), joinLabels(labels, s.Roots, ", "))
	fmt.Fprintf(w, "%s %s\n", headerStyle.Render("Hojas:"), joinLabels(labels, s.Leaves, ", "))
	if s.HasCycles() {
		for _, c := range s.Cycles {
			fmt.Fprintf(w, "%s %s\n", warnStyle.Render("Ciclo:"), joinLabels(labels, c, " → "))
		}
	} else {
		fmt.Fprintln(w, okStyle.Render("Sin ciclos"))
	}
}

func labelIndex(snap model.Snapshot) map[string]string {
	m := make(map[string]string, len(snap.Nodes))
	for _, n := range snap.Nodes {
		m[n.ID] = n.Label
	}
	return m
}

// labelScores re-keys id scores by label, keeping the id when the label is
// empty.
func labelScores(snap model.Snapshot, scores []analysis.Score) []analysis.Score {
	labels := labelIndex(snap)
	out := make([]analysis.Score, len(scores))
	for i, s := range scores {
		out[i] = s
		if l := labels[s.Key]; l != "" {
			out[i].Key = l
		}
	}
	return out
}

func joinLabels(labels map[string]string, ids []string, sep string) string {
	if len(ids) == 0 {
		return subtleStyle.Render("—")
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id
		if l := labels[id]; l != "" {
			parts[i] = l
		}
	}
	return strings.Join(parts, sep)
}
