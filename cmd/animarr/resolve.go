package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	resolveCmd := &cobra.Command{
		Use:   "resolve <path>",
		Short: "Resolve and persist the release binding for a file",
		Args:  cobra.ExactArgs(1),
		RunE:  runResolve,
	}
	resolveCmd.Flags().Bool("save", true, "Persist the winning release")
	resolveCmd.Flags().Bool("external-list", false, "Sync the result to the external tracking list")

	clearCmd := &cobra.Command{
		Use:   "clear-release <path>",
		Short: "Delete a file's release binding",
		Args:  cobra.ExactArgs(1),
		RunE:  runClearRelease,
	}
	clearCmd.Flags().Bool("external-list", false, "Also remove from the external tracking list")

	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(clearCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	save, _ := cmd.Flags().GetBool("save")
	externalList, _ := cmd.Flags().GetBool("external-list")

	components, _, closer, err := openComponents()
	if err != nil {
		return err
	}
	defer closer()

	video, _, err := components.Hashing.IdentifyFile(args[0])
	if err != nil {
		return err
	}
	if video.ID == 0 {
		return fmt.Errorf("file is not hashed yet, run 'animarr hash' first")
	}

	release, err := components.Resolution.FindRelease(cmd.Context(), video, save, externalList)
	if err != nil {
		return err
	}
	if release == nil {
		fmt.Println("no release found")
		return nil
	}
	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(release)
	}

	fmt.Printf("release %d from %s (revision %d)\n", release.ID, release.Provider, release.Revision)
	if release.Group != nil {
		fmt.Printf("  group: %s [%s]\n", release.Group.Name, release.Group.ShortName)
	}
	for _, x := range release.CrossRefs {
		fmt.Printf("  episode %d (anime %d) %d%%-%d%%\n", x.EpisodeID, x.AnimeID, x.PercentStart, x.PercentEnd)
	}
	return nil
}

func runClearRelease(cmd *cobra.Command, args []string) error {
	externalList, _ := cmd.Flags().GetBool("external-list")

	components, _, closer, err := openComponents()
	if err != nil {
		return err
	}
	defer closer()

	video, _, err := components.Hashing.IdentifyFile(args[0])
	if err != nil {
		return err
	}
	if video.ID == 0 {
		return fmt.Errorf("file is not known")
	}
	if err := components.Resolution.ClearRelease(cmd.Context(), video, externalList); err != nil {
		return err
	}
	fmt.Printf("cleared release binding of video %d\n", video.ID)
	return nil
}
