package main

import (
	"fmt"
	"os"

	"ckd2844/internal/config"
	"ckd2844/internal/ctlunit"
	"ckd2844/internal/disk"
	"ckd2844/internal/drive"
	"ckd2844/internal/host"
	"ckd2844/internal/sim"

	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var (
		configPath  string
		programPath string
		cawOffset   uint32
		targetAddr  string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a channel program (a CAW followed by a CCW chain) against configured devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			clock := sim.NewClock()
			cu, err := ctlunit.New(clock)
			if err != nil {
				return err
			}

			var runAddr byte
			for i, dc := range cfg.Devices {
				dt, err := config.DeviceTypeByte(dc.DeviceType)
				if err != nil {
					return err
				}
				addr, err := config.ParseAddress(dc.Address)
				if err != nil {
					return err
				}
				d, _, err := disk.Attach(dc.Path, dc.Heads, dc.Cylinders, dc.TrackSize, dt, false, dc.IPL)
				if err != nil {
					return fmt.Errorf("attaching device %d (%s): %w", i, dc.Address, err)
				}
				defer d.Detach()
				cu.AttachDrive(addr, drive.New(d, clock))
				if i == 0 {
					runAddr = addr
				}
			}
			if targetAddr != "" {
				runAddr, err = config.ParseAddress(targetAddr)
				if err != nil {
					return err
				}
			}

			mem, err := os.ReadFile(programPath)
			if err != nil {
				return err
			}
			if int(cawOffset)+4 > len(mem) {
				return fmt.Errorf("program file too small for a CAW at offset %#x", cawOffset)
			}
			caw := host.DecodeCAW(mem[cawOffset : cawOffset+4])
			drv := host.NewDriver(cu.Execute)
			csw, err := drv.Run(runAddr, caw, mem)
			if err != nil {
				fmt.Fprintf(os.Stderr, "channel program error: %v\n", err)
			}
			fmt.Printf("final CSW: status=%#02x count=%d\n", csw.Status, csw.Count)
			return err
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "devices.toml", "device configuration file")
	cmd.Flags().StringVar(&programPath, "program", "", "binary channel program (CAW + CCWs + data)")
	cmd.Flags().Uint32Var(&cawOffset, "caw-offset", host.CAWOffset, "byte offset of the CAW within the program file")
	cmd.Flags().StringVar(&targetAddr, "device", "", "device address the channel program targets (default: first configured device)")
	cmd.MarkFlagRequired("program")
	return cmd
}
