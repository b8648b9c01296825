package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/gwillem/lerobot-dual/pkg/bus"
	"github.com/gwillem/lerobot-dual/pkg/device"
	"github.com/gwillem/lerobot-dual/pkg/teleop"
)

type TeleoperateCommand struct {
	Hz      int     `long:"hz" default:"60" description:"Control loop frequency"`
	Mirror  bool    `long:"mirror" description:"Cross-map arms: right leader drives left follower"`
	MaxStep float64 `long:"max-step" default:"0" description:"Safety clamp: max per-cycle joint delta (0 disables)"`
}

const (
	headerHeight = 2 // title + blank line
	legendHeight = 3 // two legend rows + blank
	footerHeight = 7 // log box height
	maxLogs      = 5 // number of log messages to show
	borderSize   = 2 // chart border
)

// One color per joint slot; the right arm uses the saturated variant,
// the left arm the dimmer one.
var jointColors = map[bus.JointName][2]string{
	bus.Joint0:  {"196", "88"},  // red
	bus.Joint1:  {"208", "130"}, // orange
	bus.Joint2:  {"226", "142"}, // yellow
	bus.Joint3:  {"46", "22"},   // green
	bus.Joint4:  {"51", "30"},   // cyan
	bus.Joint5:  {"21", "18"},   // blue
	bus.Joint6:  {"93", "54"},   // purple
	bus.Gripper: {"201", "126"}, // magenta
}

func jointColor(side device.Side, joint bus.JointName) string {
	pair := jointColors[joint]
	if side == device.SideRight {
		return pair[0]
	}
	return pair[1]
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type teleopModel struct {
	ctrl          *teleop.Controller
	chart         *streamlinechart.Model
	width         int
	height        int
	logs          []string
	quitting      bool
	lastPositions map[string]float64 // previous action, to freeze the chart when idle
}

func (m *teleopModel) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

func (m *teleopModel) hasMovement(positions map[string]float64) bool {
	if m.lastPositions == nil {
		return true
	}
	for key, pos := range positions {
		if lastPos, ok := m.lastPositions[key]; !ok || pos != lastPos {
			return true
		}
	}
	return false
}

type stateMsg teleop.State
type logMsg string

func waitForState(ctrl *teleop.Controller) tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-ctrl.States())
	}
}

func waitForLog(ctrl *teleop.Controller) tea.Cmd {
	return func() tea.Msg {
		return logMsg(<-ctrl.Logs())
	}
}

func (m *teleopModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 20
	}
	width = m.width - borderSize - 2
	if width < 40 {
		width = 40
	}
	height = m.height - headerHeight - legendHeight - footerHeight - borderSize
	if height < 10 {
		height = 10
	}
	return width, height
}

func (m *teleopModel) resizeChart() {
	w, h := m.chartSize()
	m.chart.Resize(w, h)
}

func initialTeleopModel(ctrl *teleop.Controller) teleopModel {
	chart := streamlinechart.New(80, 20,
		streamlinechart.WithYRange(-100, 100),
	)

	for _, side := range device.Sides() {
		for _, joint := range bus.AllJoints() {
			style := lipgloss.NewStyle().Foreground(lipgloss.Color(jointColor(side, joint)))
			chart.SetDataSetStyles(side.PosKey(joint), runes.ThinLineStyle, style)
		}
	}

	return teleopModel{
		ctrl:  ctrl,
		chart: &chart,
	}
}

func (m teleopModel) Init() tea.Cmd {
	return tea.Batch(
		waitForState(m.ctrl),
		waitForLog(m.ctrl),
	)
}

func (m teleopModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeChart()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case stateMsg:
		state := teleop.State(msg)
		if state.Action != nil {
			if m.hasMovement(state.Action) {
				for key, pos := range state.Action {
					m.chart.PushDataSet(key, pos)
				}
				m.chart.DrawAll()
				m.lastPositions = state.Action
			}
		}
		return m, waitForState(m.ctrl)

	case logMsg:
		m.addLog(string(msg))
		return m, waitForLog(m.ctrl)
	}

	return m, nil
}

func (m teleopModel) View() string {
	if m.quitting {
		return "Teleoperation stopped.\n"
	}

	var sb strings.Builder

	sb.WriteString(titleStyle.Render("LeRobot Dual Teleoperate"))
	sb.WriteString(fmt.Sprintf(" - %d Hz", m.ctrl.Hz()))
	if m.width > 0 {
		sb.WriteString(statusStyle.Render(fmt.Sprintf("  [%dx%d]", m.width, m.height)))
	}
	sb.WriteString("\n\n")

	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")

	sb.WriteString(renderLegend())
	sb.WriteString("\n")

	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(m.width - 4).
		Foreground(lipgloss.Color("9"))

	var logLines string
	if len(m.logs) == 0 {
		logLines = statusStyle.Render("Press 'q' to quit")
	} else {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

func renderLegend() string {
	var lines []string
	for _, side := range device.Sides() {
		var items []string
		for _, joint := range bus.AllJoints() {
			colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(jointColor(side, joint))).Bold(true)
			items = append(items, colorStyle.Render("━━")+" "+string(side)[:1]+"_"+string(joint))
		}
		lines = append(lines, strings.Join(items, "  "))
	}
	return strings.Join(lines, "\n")
}

// uiLogger routes device logs into the teleop log pane. The ctrl
// field is set after the controller exists.
type uiLogger struct {
	ctrl *teleop.Controller
}

func (l *uiLogger) Debugf(format string, args ...any) {}
func (l *uiLogger) Infof(format string, args ...any) {
	if l.ctrl != nil {
		l.ctrl.Logf(format, args...)
	}
}

func (c *TeleoperateCommand) Execute(args []string) error {
	cfg, err := device.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "No configuration found. Run 'lerobot-dual setup' first.")
		os.Exit(1)
	}

	if !cfg.Leader.HasPorts() || !cfg.Follower.HasPorts() {
		fmt.Fprintln(os.Stderr, "Arms not configured. Run 'lerobot-dual setup' first.")
		os.Exit(1)
	}
	if !cfg.Leader.IsCalibrated() || !cfg.Follower.IsCalibrated() {
		fmt.Fprintln(os.Stderr, "Devices not calibrated. Run 'lerobot-dual calibrate' first.")
		os.Exit(1)
	}

	fmt.Printf("Loaded configuration from %s\n", device.DefaultConfigFile)

	logger := &uiLogger{}

	maxStep := cfg.Follower.MaxRelativeTarget
	if c.MaxStep > 0 {
		maxStep = &c.MaxStep
	}

	leader, err := device.NewLeader(device.LeaderConfig{
		RightPort:   cfg.Leader.RightPort,
		LeftPort:    cfg.Leader.LeftPort,
		UseDegrees:  cfg.Leader.UseDegrees,
		Calibration: cfg.Leader.Calibration,
		Logger:      logger,
	})
	if err != nil {
		log.Fatalf("Failed to create leader: %v", err)
	}

	follower, err := device.NewFollower(device.FollowerConfig{
		RightPort:                 cfg.Follower.RightPort,
		LeftPort:                  cfg.Follower.LeftPort,
		UseDegrees:                cfg.Follower.UseDegrees,
		MaxRelativeTarget:         maxStep,
		DisableTorqueOnDisconnect: cfg.Follower.DisableTorqueOnDisconnect,
		Calibration:               cfg.Follower.Calibration,
		Logger:                    logger,
	})
	if err != nil {
		log.Fatalf("Failed to create follower: %v", err)
	}

	ctrl, err := teleop.NewController(teleop.Config{
		Leader:   leader,
		Follower: follower,
		Hz:       c.Hz,
		Mirror:   c.Mirror,
	})
	if err != nil {
		log.Fatalf("Failed to create controller: %v", err)
	}
	logger.ctrl = ctrl

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := ctrl.Start(ctx); err != nil && err != context.Canceled {
			log.Printf("Controller error: %v", err)
		}
	}()

	p := tea.NewProgram(initialTeleopModel(ctrl), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatalf("Error running program: %v", err)
	}

	return nil
}
