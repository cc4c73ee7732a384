package main

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"plinko/internal/plinko"
)

var (
	accent  = color.New(color.FgCyan, color.Bold)
	success = color.New(color.FgGreen, color.Bold)
	danger  = color.New(color.FgRed, color.Bold)
	neutral = color.New(color.FgHiWhite)
)

type verifyArgs struct {
	height     uint64
	at         string
	player     string
	nonce      uint64
	difficulty string
	path       string
}

func newVerifyCmd() *cobra.Command {
	var a verifyArgs
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Replay a ball path from its public inputs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := runVerify(cmd.OutOrStdout(), a)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("path does not match")
			}
			return nil
		},
	}
	cmd.Flags().Uint64Var(&a.height, "height", 0, "block height of the play")
	cmd.Flags().StringVar(&a.at, "time", "", "block time of the play (RFC 3339)")
	cmd.Flags().StringVar(&a.player, "player", "", "player address")
	cmd.Flags().Uint64Var(&a.nonce, "nonce", 0, "player's game count before the play")
	cmd.Flags().StringVar(&a.difficulty, "difficulty", string(plinko.DifficultyEasy), "easy, medium or hard")
	cmd.Flags().StringVar(&a.path, "path", "", "claimed path as 0/1 steps; empty prints the replayed path")
	_ = cmd.MarkFlagRequired("time")
	_ = cmd.MarkFlagRequired("player")
	return cmd
}

// runVerify prints the replayed path and reports whether it matches the
// claimed one. Without a claim it only prints.
func runVerify(w io.Writer, a verifyArgs) (bool, error) {
	at, err := time.Parse(time.RFC3339Nano, a.at)
	if err != nil {
		return false, fmt.Errorf("invalid time: %w", err)
	}
	rows, err := plinko.Difficulty(a.difficulty).Rows()
	if err != nil {
		return false, err
	}

	in := plinko.SeedInput{Height: a.height, Time: at, Player: a.player, Nonce: a.nonce}
	replayed := plinko.GeneratePath(in, rows)

	accent.Fprintf(w, "seed     %x\n", in.Seed())
	neutral.Fprintf(w, "path     %s\n", replayed)
	neutral.Fprintf(w, "bucket   %d of %d\n", replayed.Bucket(), rows)

	if a.path == "" {
		return true, nil
	}
	claimed, err := plinko.ParsePath(a.path)
	if err != nil {
		return false, err
	}
	if len(claimed) == rows && plinko.Verify(in, claimed) {
		success.Fprintln(w, "verified: path matches")
		return true, nil
	}
	danger.Fprintf(w, "mismatch: claimed %s\n", claimed)
	return false, nil
}
