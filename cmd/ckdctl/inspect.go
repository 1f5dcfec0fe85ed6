package main

import (
	"fmt"
	"os"

	"ckd2844/internal/disk"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"
)

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <path>",
		Short: "Dump a CKD image's header and cylinder-0/head-0 track layout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			buf, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			hdr, err := disk.DecodeHeader(buf)
			if err != nil {
				return err
			}
			fmt.Println("header:")
			spew.Dump(hdr)

			want := hdr.FileSize()
			if int64(len(buf)) != want {
				fmt.Fprintf(os.Stderr, "warning: file is %d bytes, header implies %d\n", len(buf), want)
			}

			if len(buf) >= disk.HeaderSize+int(hdr.TrackSize) {
				dumpTrack(buf[disk.HeaderSize : disk.HeaderSize+int(hdr.TrackSize)])
			}
			return nil
		},
	}
	return cmd
}

// dumpTrack lists the home address and record directory of one raw track
// image: the 5-byte HA, then each record's count field up to the all-ones
// terminator.
func dumpTrack(track []byte) {
	fmt.Printf("cyl 0 head 0: HA flag=%#02x cyl=%d head=%d\n",
		track[0], int(track[1])<<8|int(track[2]), int(track[3])<<8|int(track[4]))
	off := 5
	for off+8 <= len(track) {
		if track[off] == 0xFF && track[off+1] == 0xFF && track[off+2] == 0xFF && track[off+3] == 0xFF {
			fmt.Println("  (end of track)")
			return
		}
		cyl := int(track[off])<<8 | int(track[off+1])
		head := int(track[off+2])<<8 | int(track[off+3])
		rec := int(track[off+4])
		klen := int(track[off+5])
		dlen := int(track[off+6])<<8 | int(track[off+7])
		fmt.Printf("  R%d: cyl=%d head=%d klen=%d dlen=%d\n", rec, cyl, head, klen, dlen)
		off += 8 + klen + dlen
	}
}
