package main

import (
	"fmt"

	"ckd2844/internal/config"
	"ckd2844/internal/disk"

	"github.com/spf13/cobra"
)

func newFormatCmd() *cobra.Command {
	var (
		heads     uint32
		cyls      uint16
		trackSize uint32
		devType   string
		ipl       bool
	)
	cmd := &cobra.Command{
		Use:   "format <path>",
		Short: "Write a fresh CKD image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dt, err := config.DeviceTypeByte(devType)
			if err != nil {
				return err
			}
			if err := disk.Format(args[0], heads, cyls, trackSize, dt, ipl); err != nil {
				return err
			}
			fmt.Printf("formatted %s: %d heads, %d cylinders, %d-byte tracks\n", args[0], heads, cyls+1, disk.RoundUp512(trackSize))
			return nil
		},
	}
	cmd.Flags().Uint32Var(&heads, "heads", 20, "heads per cylinder")
	cmd.Flags().Uint16Var(&cyls, "cyls", 199, "highest cylinder number")
	cmd.Flags().Uint32Var(&trackSize, "track-size", 14568, "bytes per track")
	cmd.Flags().StringVar(&devType, "device-type", "2314", "device type (2311 or 2314)")
	cmd.Flags().BoolVar(&ipl, "ipl", false, "write IPL1/IPL2/VOL1 records to cylinder 0 head 0")
	return cmd
}
