package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vmunix/animarr/internal/library"
	"github.com/vmunix/animarr/internal/relocation"
)

func init() {
	relocateCmd := &cobra.Command{
		Use:   "relocate <path>",
		Short: "Move and rename a file through a relocation pipe",
		Args:  cobra.ExactArgs(1),
		RunE:  runRelocate,
	}
	relocateCmd.Flags().String("pipe", "", "Pipe name (default pipe if empty)")
	relocateCmd.Flags().Int64("folder", 0, "Bypass pipes: target managed folder ID")
	relocateCmd.Flags().String("path", "", "Bypass pipes: target relative path")
	relocateCmd.Flags().Bool("dry-run", false, "Compute the target without touching the filesystem")

	rootCmd.AddCommand(relocateCmd)
}

func runRelocate(cmd *cobra.Command, args []string) error {
	pipeName, _ := cmd.Flags().GetString("pipe")
	folderID, _ := cmd.Flags().GetInt64("folder")
	targetRel, _ := cmd.Flags().GetString("path")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	components, _, closer, err := openComponents()
	if err != nil {
		return err
	}
	defer closer()

	video, loc, err := components.Hashing.IdentifyFile(args[0])
	if err != nil {
		return err
	}
	if video.ID == 0 {
		return fmt.Errorf("file is not hashed yet, run 'animarr hash' first")
	}

	// An explicit target bypasses the pipe machinery entirely.
	if folderID != 0 || targetRel != "" {
		if folderID == 0 || targetRel == "" {
			return fmt.Errorf("--folder and --path must be given together")
		}
		if dryRun {
			fmt.Printf("would move to folder %d at %s\n", folderID, targetRel)
			return nil
		}
		result, err := components.Relocation.DirectRelocate(cmd.Context(), video, loc, folderID, targetRel)
		if err != nil {
			return err
		}
		return printRelocation(result)
	}

	var pipe *library.RelocationPipe
	if pipeName == "" {
		pipe, _, err = components.RelocReg.DefaultPipe()
	} else {
		pipe, _, err = components.RelocReg.Pipe(pipeName)
	}
	if err != nil {
		return err
	}

	if dryRun {
		target, err := components.Relocation.ComputeTarget(cmd.Context(), video, loc, pipe, true, true)
		if err != nil {
			return err
		}
		fmt.Printf("would move to folder %d at %s\n", target.Folder.ID, target.RelativePath)
		return nil
	}

	result, err := components.Relocation.Relocate(cmd.Context(), video, loc, pipe)
	if err != nil {
		return err
	}
	return printRelocation(result)
}

func printRelocation(result *relocation.Result) error {
	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(result)
	}
	if !result.Moved && !result.Renamed {
		fmt.Println("already in place")
		return nil
	}
	fmt.Printf("moved to folder %d at %s\n", result.NewFolderID, result.NewPath)
	return nil
}
