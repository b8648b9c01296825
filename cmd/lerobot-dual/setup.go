package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/hipsterbrown/feetech-servo/feetech"
	"go.bug.st/serial"

	"github.com/gwillem/lerobot-dual/pkg/device"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	subHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type SetupCommand struct{}

// The four arm slots a bimanual rig needs, in the order we ask for
// them.
type armRole struct {
	key   string
	label string
}

var armRoles = []armRole{
	{"leader_right", "Leader RIGHT (input arm you move with your right hand)"},
	{"leader_left", "Leader LEFT (input arm you move with your left hand)"},
	{"follower_right", "Follower RIGHT (actuated arm)"},
	{"follower_left", "Follower LEFT (actuated arm)"},
}

func (c *SetupCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("LeRobot Dual Setup"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━"))
	fmt.Println()

	cfg := scanForArms()

	if err := cfg.Save(); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println(successStyle.Render("Setup complete!"))
	fmt.Printf("Configuration saved to %s\n", device.DefaultConfigFile)
	fmt.Println()
	fmt.Println("Calibrate both devices with: " + headerStyle.Render("lerobot-dual calibrate"))

	return nil
}

func scanForArms() *device.FileConfig {
	fmt.Println("Scanning for SO-101 arms...")
	fmt.Println()

	arms := findArms()

	if len(arms) == 0 {
		fmt.Println("No SO-101 arms found.")
		fmt.Println("Make sure all four arms are connected and powered on.")
		os.Exit(1)
	}

	fmt.Printf("Found %d arm(s). Let's identify them...\n\n", len(arms))

	// Identify each arm by wiggling it
	ports := make(map[string]string, len(armRoles))
	for _, arm := range arms {
		role := identifyArmWithWiggle(arm, ports)
		if role != "" {
			ports[role] = arm.port
		}
		if len(ports) == len(armRoles) {
			break
		}
	}

	fmt.Println()
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━"))

	var missing []string
	for _, r := range armRoles {
		if ports[r.key] == "" {
			missing = append(missing, r.key)
		}
	}
	if len(missing) > 0 {
		fmt.Printf("Not identified: %s\n", strings.Join(missing, ", "))
		fmt.Println()
		fmt.Println("All four arms are required for bimanual teleoperation.")
		os.Exit(1)
	}

	fmt.Println(successStyle.Render("Arms identified:"))
	for _, r := range armRoles {
		fmt.Printf("  %-15s %s\n", r.key+":", ports[r.key])
	}

	return &device.FileConfig{
		Leader: device.DeviceConfig{
			RightPort: ports["leader_right"],
			LeftPort:  ports["leader_left"],
		},
		Follower: device.DeviceConfig{
			RightPort: ports["follower_right"],
			LeftPort:  ports["follower_left"],
		},
	}
}

type armInfo struct {
	port   string
	servos []feetech.FoundServo
	bus    *feetech.Bus
}

func findArms() []armInfo {
	portNames, err := serial.GetPortsList()
	if err != nil {
		fmt.Printf("Error listing ports: %v\n", err)
		return nil
	}

	var arms []armInfo

	for _, port := range portNames {
		// Skip Bluetooth ports on macOS
		if strings.Contains(port, "Bluetooth") {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)

		b, err := feetech.NewBus(feetech.BusConfig{
			Port:     port,
			BaudRate: 1_000_000,
			Protocol: feetech.ProtocolSTS,
			Timeout:  100 * time.Millisecond,
		})
		if err != nil {
			cancel()
			continue
		}

		// Scan for servos with IDs 1-8 (one dual-arm side)
		servos, err := b.Scan(ctx, 1, 8)
		cancel()

		if err != nil {
			b.Close()
			continue
		}

		if isArm(servos) {
			fmt.Printf("  Found SO-101 arm on %s\n", port)
			arms = append(arms, armInfo{port: port, servos: servos, bus: b})
		} else {
			b.Close()
		}
	}

	return arms
}

// isArm checks for the eight servos of one arm with IDs 1-8.
func isArm(servos []feetech.FoundServo) bool {
	if len(servos) != 8 {
		return false
	}
	ids := make(map[int]bool)
	for _, s := range servos {
		ids[s.ID] = true
	}
	for i := 1; i <= 8; i++ {
		if !ids[i] {
			return false
		}
	}
	return true
}

func identifyArmWithWiggle(arm armInfo, assigned map[string]string) string {
	defer arm.bus.Close()

	ctx := context.Background()

	// Wiggle the base joint (servo ID 1)
	var servo *feetech.Servo
	for _, s := range arm.servos {
		if s.ID == 1 {
			servo = feetech.NewServo(arm.bus, s.ID, s.Model)
			break
		}
	}
	if servo == nil {
		return ""
	}

	originalPos, err := servo.Position(ctx)
	if err != nil {
		fmt.Printf("  Error reading position: %v\n", err)
		return ""
	}

	if err := servo.Enable(ctx); err != nil {
		fmt.Printf("  Error enabling servo: %v\n", err)
		return ""
	}

	fmt.Printf("\n  Wiggling arm on %s...\n", arm.port)

	// Single gentle, slow movement
	wiggleAmount := 30
	moveTimeMs := 500
	servo.SetPositionWithTime(ctx, originalPos+wiggleAmount, moveTimeMs)
	time.Sleep(time.Duration(moveTimeMs+100) * time.Millisecond)
	servo.SetPositionWithTime(ctx, originalPos-wiggleAmount, moveTimeMs)
	time.Sleep(time.Duration(moveTimeMs+100) * time.Millisecond)
	servo.SetPositionWithTime(ctx, originalPos, moveTimeMs)
	time.Sleep(time.Duration(moveTimeMs+100) * time.Millisecond)

	servo.Disable(ctx)

	// Offer only the roles not yet assigned
	var options []huh.Option[string]
	for _, r := range armRoles {
		if assigned[r.key] == "" {
			options = append(options, huh.NewOption(r.label, r.key))
		}
	}
	options = append(options, huh.NewOption("Skip this arm", "skip"))

	var role string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(fmt.Sprintf("Which arm is on %s?", arm.port)).
				Description("The arm that just wiggled").
				Options(options...).
				Value(&role),
		),
	)

	if err := form.Run(); err != nil {
		fmt.Println()
		os.Exit(0)
	}

	if role == "skip" {
		return ""
	}
	return role
}
