package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"
	"github.com/urfave/cli/v2"

	"github.com/pairly/messaging-service/internal/domain/model"
)

// monitorCmd renders a terminal dashboard over a running node's
// /debug/stats endpoint. Operational convenience only; it talks to the
// same HTTP surface any curl would.
func monitorCmd() *cli.Command {
	return &cli.Command{
		Name:    "monitor",
		Aliases: []string{"mon"},
		Usage:   "Live terminal dashboard for a running node",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "target",
				Value: "http://127.0.0.1:8090",
				Usage: "Base URL of the node to watch",
			},
			&cli.DurationFlag{
				Name:  "interval",
				Value: time.Second,
				Usage: "Refresh interval",
			},
		},
		Action: func(c *cli.Context) error {
			return runMonitor(c.String("target"), c.Duration("interval"))
		},
	}
}

func runMonitor(target string, interval time.Duration) error {
	if err := ui.Init(); err != nil {
		return fmt.Errorf("monitor: init terminal: %w", err)
	}
	defer ui.Close()

	summary := widgets.NewParagraph()
	summary.Title = " node "
	summary.SetRect(0, 0, 60, 8)

	connPlot := widgets.NewPlot()
	connPlot.Title = " connections "
	connPlot.Data = [][]float64{{0, 0}}
	connPlot.SetRect(0, 8, 60, 20)

	client := &http.Client{Timeout: 2 * time.Second}
	history := []float64{0, 0}

	render := func() {
		stats, err := fetchStats(client, target)
		if err != nil {
			summary.Text = fmt.Sprintf("unreachable: %v", err)
			ui.Render(summary, connPlot)
			return
		}

		summary.Text = fmt.Sprintf(
			"online users:  %d\nconnections:   %d\nactive rooms:  %d\nuptime:        %s",
			stats.OnlineUsers, stats.TotalConnections, stats.ActiveRooms,
			stats.Uptime.Round(time.Second),
		)

		history = append(history, float64(stats.TotalConnections))
		if len(history) > 56 {
			history = history[len(history)-56:]
		}
		connPlot.Data[0] = history

		ui.Render(summary, connPlot)
	}

	render()

	events := ui.PollEvents()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case e := <-events:
			if e.Type == ui.KeyboardEvent && (e.ID == "q" || e.ID == "<C-c>") {
				return nil
			}
		case <-ticker.C:
			render()
		}
	}
}

func fetchStats(client *http.Client, target string) (*model.HubStats, error) {
	resp, err := client.Get(target + "/debug/stats")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	stats := &model.HubStats{}
	if err := json.NewDecoder(resp.Body).Decode(stats); err != nil {
		return nil, err
	}
	return stats, nil
}
