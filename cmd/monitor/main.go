package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"planforge/internal/domain"
)

type client struct {
	baseURL string
	http    *http.Client
}

type embeddedPlanner struct {
	cmd *exec.Cmd
}

func main() {
	addr := flag.String("addr", "http://localhost:8091", "planner base URL")
	interval := flag.Duration("interval", 2*time.Second, "refresh interval")
	embedded := flag.Bool("embedded", true, "start the planner in the same monitor process lifecycle")
	plannerBinary := flag.String("planner-bin", "", "path to planner binary (optional in embedded mode)")
	dbPath := flag.String("db", "data/embedded.db", "sqlite db path for embedded planner")
	flag.Parse()

	c := &client{
		baseURL: strings.TrimRight(*addr, "/"),
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	var embeddedProc *embeddedPlanner
	var err error
	if *embedded {
		embeddedProc, err = startEmbeddedPlanner(*addr, *plannerBinary, *dbPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start embedded planner: %v\n", err)
			os.Exit(1)
		}
		defer embeddedProc.Stop()
	}

	if err := waitHealth(c, 30*time.Second); err != nil {
		fmt.Fprintf(os.Stderr, "planner health check failed: %v\n", err)
		os.Exit(1)
	}

	app := tview.NewApplication()
	agentsTable := tview.NewTable().
		SetBorders(false).
		SetSelectable(true, false)
	agentsTable.SetTitle("Agents (Enter inspect, F5 refresh, F10 quit)").SetBorder(true)

	plansView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false)
	plansView.SetTitle("Plans").SetBorder(true)

	eventsView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false)
	eventsView.SetTitle("Planning Events").SetBorder(true)

	worldView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false)
	worldView.SetTitle("World").SetBorder(true)

	statusView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false)
	statusView.SetBorder(true).SetTitle("Status")
	statusView.SetText(fmt.Sprintf(
		"Connected to %s | embedded=%t | shortcuts: F10 quit, F5 refresh, Ctrl+I invalidate selected plan",
		c.baseURL,
		*embedded,
	))

	right := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(plansView, 0, 1, false).
		AddItem(worldView, 8, 0, false).
		AddItem(eventsView, 0, 2, false)

	mainLayout := tview.NewFlex().
		AddItem(agentsTable, 0, 1, false).
		AddItem(right, 0, 2, false)

	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(mainLayout, 0, 12, false).
		AddItem(statusView, 3, 0, false)

	var selectedAgentID string
	var lastAgents []domain.AgentSnapshot
	var detailsVersion uint64

	setStatusUI := func(msg string) {
		statusView.SetText(msg)
	}
	setStatusAsync := func(msg string) {
		app.QueueUpdateDraw(func() {
			statusView.SetText(msg)
		})
	}

	refreshAgents := func() {
		agents, err := c.listAgents()
		if err != nil {
			app.QueueUpdateDraw(func() {
				agentsTable.Clear()
				agentsTable.SetCell(0, 0, tview.NewTableCell(fmt.Sprintf("load error: %v", err)).SetTextColor(tview.Styles.ContrastSecondaryTextColor))
			})
			return
		}
		lastAgents = agents
		app.QueueUpdateDraw(func() {
			renderAgentsTable(agentsTable, agents, selectedAgentID)
		})
	}

	refreshDetailsAsync := func(agentID string) {
		if strings.TrimSpace(agentID) == "" {
			return
		}
		version := atomic.AddUint64(&detailsVersion, 1)
		app.QueueUpdateDraw(func() {
			plansView.SetText("Loading...")
			eventsView.SetText("Loading...")
			worldView.SetText("Loading...")
		})

		go func(selected string, v uint64) {
			plans, plansErr := c.listPlans(selected)
			events, eventsErr := c.listEvents(selected, 200)
			world, worldErr := c.world()

			if atomic.LoadUint64(&detailsVersion) != v {
				return
			}
			app.QueueUpdateDraw(func() {
				if selected != selectedAgentID {
					return
				}
				if plansErr != nil {
					plansView.SetText(fmt.Sprintf("error: %v", plansErr))
				} else {
					plansView.SetText(renderPlans(plans))
				}
				if eventsErr != nil {
					eventsView.SetText(fmt.Sprintf("error: %v", eventsErr))
				} else {
					eventsView.SetText(renderEvents(events))
				}
				if worldErr != nil {
					worldView.SetText(fmt.Sprintf("error: %v", worldErr))
				} else {
					worldView.SetText(world)
				}
			})
		}(agentID, version)
	}

	invalidateSelected := func() {
		if selectedAgentID == "" {
			setStatusUI("No agent selected")
			return
		}
		var goal string
		for _, snap := range lastAgents {
			if snap.ID == selectedAgentID {
				goal = snap.Goal
				break
			}
		}
		if goal == "" {
			setStatusUI("Selected agent has no active goal")
			return
		}
		go func(agentID, goalName string) {
			err := c.invalidatePlan(agentID, goalName, "invalidated from monitor")
			if err != nil {
				setStatusAsync("Invalidation failed: " + err.Error())
				return
			}
			setStatusAsync(fmt.Sprintf("Invalidation queued agent=%s goal=%q", shortID(agentID), goalName))
		}(selectedAgentID, goal)
	}

	agentsTable.SetSelectedFunc(func(row, _ int) {
		if row <= 0 || row > len(lastAgents) {
			return
		}
		selectedAgentID = lastAgents[row-1].ID
		refreshDetailsAsync(selectedAgentID)
	})

	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyF10:
			app.Stop()
			return nil
		case tcell.KeyF5:
			refreshAgents()
			refreshDetailsAsync(selectedAgentID)
			setStatusUI("Manual refresh complete")
			return nil
		case tcell.KeyCtrlI:
			invalidateSelected()
			return nil
		}
		return event
	})

	go func() {
		ticker := time.NewTicker(*interval)
		defer ticker.Stop()

		refreshAgents()
		if len(lastAgents) > 0 {
			selectedAgentID = lastAgents[0].ID
			refreshDetailsAsync(selectedAgentID)
		}

		for range ticker.C {
			refreshAgents()
			if selectedAgentID == "" && len(lastAgents) > 0 {
				selectedAgentID = lastAgents[0].ID
			}
			refreshDetailsAsync(selectedAgentID)
		}
	}()

	if err := app.SetRoot(root, true).EnableMouse(true).SetFocus(agentsTable).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "monitor failed: %v\n", err)
		os.Exit(1)
	}
}

func waitHealth(c *client, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		req, err := http.NewRequest(http.MethodGet, c.baseURL+"/healthz", nil)
		if err == nil {
			resp, err := c.http.Do(req)
			if err == nil {
				_ = resp.Body.Close()
				if resp.StatusCode < 300 {
					return nil
				}
			}
		}
		time.Sleep(400 * time.Millisecond)
	}
	return fmt.Errorf("timeout waiting for /healthz")
}

func startEmbeddedPlanner(addr string, plannerBinary string, dbPath string) (*embeddedPlanner, error) {
	parsed, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("parse addr: %w", err)
	}
	port := parsed.Port()
	if port == "" {
		return nil, fmt.Errorf("addr must include explicit port, got %q", addr)
	}
	addrArg := ":" + port

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	var cmd *exec.Cmd
	if strings.TrimSpace(plannerBinary) != "" {
		cmd = exec.Command(plannerBinary, "--addr", addrArg, "--db", dbPath, "--demo")
	} else {
		self, err := os.Executable()
		if err == nil {
			sibling := filepath.Join(filepath.Dir(self), "orchestrator")
			if fileExists(sibling) {
				cmd = exec.Command(sibling, "--addr", addrArg, "--db", dbPath, "--demo")
			}
		}
		if cmd == nil {
			cmd = exec.Command("go", "run", "./cmd/orchestrator", "--addr", addrArg, "--db", dbPath, "--demo")
			cwd, _ := os.Getwd()
			cmd.Dir = cwd
		}
	}

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start planner process: %w", err)
	}

	return &embeddedPlanner{cmd: cmd}, nil
}

func (e *embeddedPlanner) Stop() {
	if e == nil || e.cmd == nil || e.cmd.Process == nil {
		return
	}
	_ = e.cmd.Process.Kill()
	_, _ = e.cmd.Process.Wait()
}

func renderAgentsTable(table *tview.Table, agents []domain.AgentSnapshot, selectedAgentID string) {
	table.Clear()
	headers := []string{"Agent", "Prio", "State", "Goal", "Task", "Updated"}
	for i, h := range headers {
		table.SetCell(0, i, tview.NewTableCell(h).SetSelectable(false).SetAttributes(tcell.AttrBold))
	}
	for i, a := range agents {
		row := i + 1
		table.SetCell(row, 0, tview.NewTableCell(a.Name))
		table.SetCell(row, 1, tview.NewTableCell(fmt.Sprintf("%d", a.Priority)))
		table.SetCell(row, 2, tview.NewTableCell(string(a.State)))
		table.SetCell(row, 3, tview.NewTableCell(trimLine(a.Goal, 32)))
		table.SetCell(row, 4, tview.NewTableCell(trimLine(a.CurrentTask, 24)))
		table.SetCell(row, 5, tview.NewTableCell(a.UpdatedAt.Format("15:04:05")))
		if a.ID == selectedAgentID {
			table.Select(row, 0)
		}
	}
}

func renderPlans(items []domain.PlanRecord) string {
	if len(items) == 0 {
		return "No plans"
	}
	var b strings.Builder
	for _, p := range items {
		b.WriteString(fmt.Sprintf(
			"[%s] %s  cost=%.2f\n  %s\n",
			p.UpdatedAt.Format("15:04:05"),
			trimLine(p.GoalName, 48),
			p.Cost,
			trimLine(strings.Join(p.Tasks, " -> "), 160),
		))
	}
	return b.String()
}

func renderEvents(items []domain.PlanningEvent) string {
	if len(items) == 0 {
		return "No events"
	}
	var b strings.Builder
	for _, e := range items {
		b.WriteString(fmt.Sprintf(
			"[%s] %s %s\n",
			e.CreatedAt.Format("15:04:05"),
			e.Kind,
			trimLine(e.GoalName, 48),
		))
		if e.Detail != "" {
			b.WriteString("  detail: " + trimLine(e.Detail, 100) + "\n")
		}
		if detail := eventPayloadSummary(e.Payload); detail != "" {
			b.WriteString("  payload: " + trimLine(detail, 160) + "\n")
		}
	}
	return b.String()
}

func eventPayloadSummary(payload []byte) string {
	if len(payload) == 0 {
		return ""
	}
	trimmed := strings.TrimSpace(string(payload))
	if trimmed == "" || trimmed == "{}" || trimmed == "null" {
		return ""
	}

	var kv map[string]any
	if err := json.Unmarshal(payload, &kv); err == nil {
		keys := make([]string, 0, len(kv))
		for k := range kv {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, kv[k]))
		}
		return strings.Join(parts, ", ")
	}
	return trimmed
}

func (c *client) listAgents() ([]domain.AgentSnapshot, error) {
	var out []domain.AgentSnapshot
	if err := c.getJSON("/agents", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) listPlans(agentID string) ([]domain.PlanRecord, error) {
	var out []domain.PlanRecord
	if err := c.getJSON(fmt.Sprintf("/agents/%s/plans", agentID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) listEvents(agentID string, limit int) ([]domain.PlanningEvent, error) {
	var out []domain.PlanningEvent
	if err := c.getJSON(fmt.Sprintf("/agents/%s/events?limit=%d", agentID, limit), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) world() (string, error) {
	var out struct {
		Facts string `json:"facts"`
	}
	if err := c.getJSON("/world", &out); err != nil {
		return "", err
	}
	if out.Facts == "" {
		return "No facts", nil
	}
	return out.Facts, nil
}

func (c *client) invalidatePlan(agentID, goalName, reason string) error {
	body := map[string]any{
		"goal_name": goalName,
		"reason":    reason,
	}
	return c.postJSON(fmt.Sprintf("/agents/%s/invalidate", agentID), body, nil)
}

func (c *client) getJSON(path string, out any) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("http %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return err
	}
	return nil
}

func (c *client) postJSON(path string, in any, out any) error {
	var payload io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("http %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return err
	}
	return nil
}

func trimLine(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}

func shortID(v string) string {
	if len(v) <= 8 {
		return v
	}
	return v[:8]
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
