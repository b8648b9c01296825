package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/gwillem/lerobot-dual/pkg/bus"
	"github.com/gwillem/lerobot-dual/pkg/device"
)

type CalibrateCommand struct {
	Role string `long:"role" choice:"leader" choice:"follower" choice:"both" default:"both" description:"Which device to calibrate"`
}

func (c *CalibrateCommand) Execute(args []string) error {
	cfg, err := device.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "No configuration found. Run 'lerobot-dual setup' first.")
		os.Exit(1)
	}

	ctx := context.Background()

	if c.Role == "leader" || c.Role == "both" {
		fmt.Println()
		fmt.Println(subHeaderStyle.Render("━━━ Calibrating Leader Device ━━━"))
		if err := calibrateLeader(ctx, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Leader calibration failed: %v\n", err)
			os.Exit(1)
		}
	}

	if c.Role == "follower" || c.Role == "both" {
		fmt.Println()
		fmt.Println(subHeaderStyle.Render("━━━ Calibrating Follower Device ━━━"))
		if err := calibrateFollower(ctx, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Follower calibration failed: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Println()
	fmt.Println(successStyle.Render("Calibration complete!"))
	fmt.Println("Start teleoperation with: " + headerStyle.Render("lerobot-dual teleoperate"))
	return nil
}

func calibrateLeader(ctx context.Context, cfg *device.FileConfig) error {
	if !cfg.Leader.HasPorts() {
		return fmt.Errorf("leader ports not configured, run setup first")
	}
	leader, err := device.NewLeader(device.LeaderConfig{
		RightPort:  cfg.Leader.RightPort,
		LeftPort:   cfg.Leader.LeftPort,
		UseDegrees: cfg.Leader.UseDegrees,
		Confirmer:  &consoleConfirmer{},
		Persist: func(set device.CalibrationSet) error {
			cfg.Leader.Calibration = set
			return cfg.Save()
		},
	})
	if err != nil {
		return err
	}
	return runCalibration(ctx, leader.Coordinator)
}

func calibrateFollower(ctx context.Context, cfg *device.FileConfig) error {
	if !cfg.Follower.HasPorts() {
		return fmt.Errorf("follower ports not configured, run setup first")
	}
	follower, err := device.NewFollower(device.FollowerConfig{
		RightPort:  cfg.Follower.RightPort,
		LeftPort:   cfg.Follower.LeftPort,
		UseDegrees: cfg.Follower.UseDegrees,
		Confirmer:  &consoleConfirmer{},
		Persist: func(set device.CalibrationSet) error {
			cfg.Follower.Calibration = set
			return cfg.Save()
		},
	})
	if err != nil {
		return err
	}
	return runCalibration(ctx, follower.Coordinator)
}

func runCalibration(ctx context.Context, coord *device.Coordinator) error {
	// Connect without auto-calibration so re-running always records a
	// fresh set.
	if err := coord.Connect(ctx, false); err != nil {
		return err
	}
	defer coord.Disconnect(ctx)
	return coord.Calibrate(ctx)
}

// consoleConfirmer gates calibration steps with terminal prompts and
// shows a live range table while the operator sweeps the joints.
type consoleConfirmer struct{}

func (consoleConfirmer) Confirm(prompt string) error {
	fmt.Println(prompt)

	confirmed := false
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("").
				Affirmative("Continue").
				Negative("").
				Value(&confirmed),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}
	return nil
}

func (consoleConfirmer) Watch(prompt string) (<-chan struct{}, func(map[bus.JointName]int), error) {
	fmt.Println(prompt)
	fmt.Println(dimStyle.Render("Recording positions. Press Enter when done."))

	p := tea.NewProgram(newRangeModel())
	stop := make(chan struct{})
	go func() {
		defer close(stop)
		p.Run()
	}()
	sample := func(positions map[bus.JointName]int) {
		p.Send(sampleMsg(positions))
	}
	return stop, sample, nil
}

// Live range-of-motion table, fed by calibration samples.
type rangeModel struct {
	joints       []bus.JointName
	curPositions map[bus.JointName]int
	minPositions map[bus.JointName]int
	maxPositions map[bus.JointName]int
	quitting     bool
}

type sampleMsg map[bus.JointName]int

func newRangeModel() rangeModel {
	return rangeModel{
		joints:       bus.AllJoints(),
		curPositions: make(map[bus.JointName]int),
		minPositions: make(map[bus.JointName]int),
		maxPositions: make(map[bus.JointName]int),
	}
}

func (m rangeModel) Init() tea.Cmd { return nil }

func (m rangeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter", "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case sampleMsg:
		for joint, pos := range msg {
			if _, seen := m.curPositions[joint]; !seen {
				m.minPositions[joint] = pos
				m.maxPositions[joint] = pos
			}
			m.curPositions[joint] = pos
			if pos < m.minPositions[joint] {
				m.minPositions[joint] = pos
			}
			if pos > m.maxPositions[joint] {
				m.maxPositions[joint] = pos
			}
		}
	}
	return m, nil
}

func (m rangeModel) View() string {
	if m.quitting {
		return ""
	}

	var sb strings.Builder

	tableHeaderStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	tableJointStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Padding(0, 1)
	tableCellStyle := lipgloss.NewStyle().Padding(0, 1)
	tableCurrentStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Padding(0, 1)
	tableRangeGoodStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Padding(0, 1)
	tableRangeLowStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Padding(0, 1)

	rows := make([][]string, 0, len(m.joints))
	ranges := make([]int, 0, len(m.joints))
	for _, joint := range m.joints {
		rangeSize := m.maxPositions[joint] - m.minPositions[joint]
		ranges = append(ranges, rangeSize)
		rows = append(rows, []string{
			string(joint),
			fmt.Sprintf("%d", m.curPositions[joint]),
			fmt.Sprintf("%d", m.minPositions[joint]),
			fmt.Sprintf("%d", m.maxPositions[joint]),
			fmt.Sprintf("%d", rangeSize),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Joint", "Current", "Min", "Max", "Range").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			switch col {
			case 0:
				return tableJointStyle
			case 1:
				return tableCurrentStyle
			case 4:
				if row >= 0 && row < len(ranges) && ranges[row] > 500 {
					return tableRangeGoodStyle
				}
				return tableRangeLowStyle
			default:
				return tableCellStyle
			}
		})

	sb.WriteString(t.Render())
	sb.WriteString("\n\n")
	sb.WriteString(dimStyle.Render("Press Enter when done"))

	return sb.String()
}
