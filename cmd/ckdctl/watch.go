package main

import (
	"fmt"
	"time"

	"ckd2844/internal/config"
	"ckd2844/internal/disk"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

func newWatchCmd() *cobra.Command {
	var heads uint32
	var cyls uint16
	var trackSize uint32
	var devType string
	cmd := &cobra.Command{
		Use:   "watch <path>",
		Short: "Observe a disk's rotational position state live (read-only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dt, err := config.DeviceTypeByte(devType)
			if err != nil {
				return err
			}
			d, _, err := disk.Attach(args[0], heads, cyls, trackSize, dt, false, false)
			if err != nil {
				return err
			}
			defer d.Detach()
			p := tea.NewProgram(newWatchModel(d))
			_, err = p.Run()
			return err
		},
	}
	cmd.Flags().Uint32Var(&heads, "heads", 20, "heads per cylinder, must match the image")
	cmd.Flags().Uint16Var(&cyls, "cyls", 199, "highest cylinder number, must match the image")
	cmd.Flags().Uint32Var(&trackSize, "track-size", 14568, "bytes per track, must match the image")
	cmd.Flags().StringVar(&devType, "device-type", "2314", "device type (2311 or 2314)")
	return cmd
}

type tickMsg time.Time

func tickEvery() tea.Cmd {
	return tea.Tick(16*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// watchModel is a bubbletea model that just steps the disk's rotation and
// renders its current state; it is strictly read-only.
type watchModel struct {
	d        *disk.Disk
	ticks    int64
	lastByte byte
	lastAM   bool
}

func newWatchModel(d *disk.Disk) watchModel {
	return watchModel{d: d}
}

func (m watchModel) Init() tea.Cmd {
	return tickEvery()
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tickMsg:
		for i := 0; i < 50; i++ {
			b, am, _, valid := m.d.ReadByte()
			m.ticks++
			if valid {
				m.lastByte = b
				m.lastAM = am
			}
		}
		return m, tickEvery()
	}
	return m, nil
}

var (
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	boxStyle   = lipgloss.NewStyle().Padding(1, 2).Border(lipgloss.RoundedBorder())
)

func (m watchModel) View() string {
	body := fmt.Sprintf(
		"%s %s\n%s %d\n%s %#02x\n%s %v\n\n(q to quit)",
		labelStyle.Render("state:"), m.d.StateName(),
		labelStyle.Render("ticks:"), m.ticks,
		labelStyle.Render("last byte:"), m.lastByte,
		labelStyle.Render("address mark:"), m.lastAM,
	)
	return boxStyle.Render(body)
}
