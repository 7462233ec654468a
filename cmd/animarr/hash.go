package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	hashCmd := &cobra.Command{
		Use:   "hash <path>",
		Short: "Establish the content identity of a file",
		Long: `Hashes the file with every enabled hash provider, persists its video
and location records, and prints the resulting digests.`,
		Args: cobra.ExactArgs(1),
		RunE: runHash,
	}
	hashCmd.Flags().Bool("reuse", true, "Reuse already persisted digests where possible")

	identifyCmd := &cobra.Command{
		Use:   "identify <path>",
		Short: "Resolve a path to its managed folder and known records",
		Args:  cobra.ExactArgs(1),
		RunE:  runIdentify,
	}

	rootCmd.AddCommand(hashCmd)
	rootCmd.AddCommand(identifyCmd)
}

func runHash(cmd *cobra.Command, args []string) error {
	reuse, _ := cmd.Flags().GetBool("reuse")

	components, _, closer, err := openComponents()
	if err != nil {
		return err
	}
	defer closer()

	video, loc, err := components.Hashing.IdentifyFile(args[0])
	if err != nil {
		return err
	}
	result, err := components.Hashing.GetOrCreateIdentity(cmd.Context(), video, loc, reuse)
	if err != nil {
		return err
	}

	digests, err := components.Store.ListDigests(result.Video.ID)
	if err != nil {
		return err
	}
	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(map[string]any{
			"video":             result.Video,
			"location":          result.Location,
			"digests":           digests,
			"new_video":         result.NewVideo,
			"duplicate_handled": result.DuplicateHandled,
		})
	}

	fmt.Printf("video %d (%d bytes)\n", result.Video.ID, result.Video.SizeBytes)
	for _, d := range digests {
		fmt.Printf("  %-6s %s\n", d.Type, d.Value)
	}
	if result.DuplicateHandled {
		fmt.Println("duplicate copy removed")
	}
	return nil
}

func runIdentify(_ *cobra.Command, args []string) error {
	components, _, closer, err := openComponents()
	if err != nil {
		return err
	}
	defer closer()

	video, loc, err := components.Hashing.IdentifyFile(args[0])
	if err != nil {
		return err
	}
	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(map[string]any{
			"video":    video,
			"location": loc,
		})
	}
	if video.ID == 0 {
		fmt.Printf("unknown file in folder %d at %s\n", loc.FolderID, loc.RelativePath)
		return nil
	}
	fmt.Printf("video %d  ed2k=%s  folder=%d  path=%s\n", video.ID, video.ED2K, loc.FolderID, loc.RelativePath)
	return nil
}
